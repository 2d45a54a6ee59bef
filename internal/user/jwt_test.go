package user

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XB811/index12306/internal/models"
)

var testSecret = []byte("test-secret-key-0123456789-abcdefghijklmnop")

// setupTestLogger creates a logger that discards output
func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestCodec(opts ...CodecOption) *Codec {
	return NewCodec(CodecConfig{Secret: testSecret}, setupTestLogger(), opts...)
}

// fakeRecorder collects events for assertions
type fakeRecorder struct {
	decodes   []string
	transmits []bool
}

func (f *fakeRecorder) RecordDecode(outcome string) {
	f.decodes = append(f.decodes, outcome)
}

func (f *fakeRecorder) RecordTransmit(authenticated bool) {
	f.transmits = append(f.transmits, authenticated)
}

func signRaw(t *testing.T, method jwt.SigningMethod, claims jwt.Claims, secret []byte) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(secret)
	require.NoError(t, err)
	return TokenPrefix + token
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := newTestCodec()

	tests := []struct {
		name string
		info models.UserInfo
	}{
		{
			name: "all fields",
			info: models.UserInfo{UserID: "1813274434794377216", Username: "zhangsan", RealName: "张三"},
		},
		{
			name: "empty optional fields",
			info: models.UserInfo{UserID: "42"},
		},
		{
			name: "unicode username",
			info: models.UserInfo{UserID: "u-1", Username: "李四", RealName: ""},
		},
		{
			name: "special characters",
			info: models.UserInfo{UserID: "u_2", Username: "a+b%20c", RealName: "O'Brien \"Jr\""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := codec.Encode(tt.info)
			require.NoError(t, err)

			decoded := codec.Decode(token)
			require.NotNil(t, decoded)
			assert.Equal(t, tt.info, *decoded)
		})
	}
}

func TestCodec_EncodeFormat(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	codec := newTestCodec(WithClock(func() time.Time { return now }))

	token, err := codec.Encode(models.UserInfo{UserID: "1", Username: "alice", RealName: "Alice"})
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(token, "Bearer "))
	parts := strings.Split(strings.TrimPrefix(token, TokenPrefix), ".")
	require.Len(t, parts, 3)

	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	require.NoError(t, err)
	var header map[string]any
	require.NoError(t, json.Unmarshal(headerJSON, &header))
	assert.Equal(t, "HS512", header["alg"])

	claimsJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	var claims map[string]any
	require.NoError(t, json.Unmarshal(claimsJSON, &claims))

	assert.Equal(t, "1", claims["userId"])
	assert.Equal(t, "alice", claims["username"])
	assert.Equal(t, "Alice", claims["realName"])
	assert.Equal(t, DefaultIssuer, claims["iss"])
	assert.Equal(t, float64(now.Unix()), claims["iat"])
	assert.Equal(t, float64(now.Unix()+86400), claims["exp"])
	assert.NotEmpty(t, claims["jti"])
}

func TestCodec_EncodeEmptyUserID(t *testing.T) {
	codec := newTestCodec()

	for _, userID := range []string{"", "   "} {
		token, err := codec.Encode(models.UserInfo{UserID: userID, Username: "alice"})
		require.ErrorIs(t, err, ErrEmptyUserID)
		assert.Empty(t, token)
	}
}

func TestCodec_ExpiredToken(t *testing.T) {
	issuedAt := time.Now().Add(-DefaultTTL - time.Second)
	issuer := newTestCodec(WithClock(func() time.Time { return issuedAt }))

	token, err := issuer.Encode(models.UserInfo{UserID: "1813274434794377216"})
	require.NoError(t, err)

	rec := &fakeRecorder{}
	codec := newTestCodec(WithRecorder(rec))

	assert.Nil(t, codec.Decode(token))
	assert.Equal(t, []string{OutcomeExpired}, rec.decodes)

	_, err = codec.Parse(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestCodec_ExpiryBoundary(t *testing.T) {
	issuedAt := time.Unix(1_700_000_000, 0)
	token, err := newTestCodec(WithClock(func() time.Time { return issuedAt })).
		Encode(models.UserInfo{UserID: "1"})
	require.NoError(t, err)

	t.Run("one second before exp", func(t *testing.T) {
		at := issuedAt.Add(DefaultTTL - time.Second)
		codec := newTestCodec(WithClock(func() time.Time { return at }))
		assert.NotNil(t, codec.Decode(token))
	})

	t.Run("exactly at exp", func(t *testing.T) {
		at := issuedAt.Add(DefaultTTL)
		codec := newTestCodec(WithClock(func() time.Time { return at }))
		assert.Nil(t, codec.Decode(token))
	})
}

func TestCodec_TamperedSignature(t *testing.T) {
	codec := newTestCodec()

	token, err := codec.Encode(models.UserInfo{UserID: "1", Username: "alice"})
	require.NoError(t, err)
	require.NotNil(t, codec.Decode(token))

	compact := strings.TrimPrefix(token, TokenPrefix)
	lastDot := strings.LastIndex(compact, ".")
	signingInput, signature := compact[:lastDot+1], compact[lastDot+1:]

	for i := range signature {
		sig := []byte(signature)
		if sig[i] == 'A' {
			sig[i] = 'B'
		} else {
			sig[i] = 'A'
		}

		tampered := TokenPrefix + signingInput + string(sig)
		assert.Nil(t, codec.Decode(tampered), "signature byte %d altered", i)

		_, err := codec.Parse(tampered)
		assert.Error(t, err)
	}
}

func TestCodec_TamperedClaims(t *testing.T) {
	codec := newTestCodec()

	token, err := codec.Encode(models.UserInfo{UserID: "1"})
	require.NoError(t, err)

	parts := strings.Split(strings.TrimPrefix(token, TokenPrefix), ".")
	forged, err := json.Marshal(map[string]any{
		"userId": "2",
		"iss":    DefaultIssuer,
		"exp":    time.Now().Add(time.Hour).Unix(),
	})
	require.NoError(t, err)
	parts[1] = base64.RawURLEncoding.EncodeToString(forged)

	_, err = codec.Parse(strings.Join(parts, "."))
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestCodec_RejectsForeignTokens(t *testing.T) {
	codec := newTestCodec()
	now := time.Now()

	validClaims := func(issuer string) UserClaims {
		return UserClaims{
			UserID: "1",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    issuer,
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}
	}

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{
			name:    "wrong secret",
			token:   signRaw(t, jwt.SigningMethodHS512, validClaims(DefaultIssuer), []byte("another-secret-key-0123456789-abcdefghijk")),
			wantErr: ErrTokenInvalid,
		},
		{
			name:    "wrong algorithm",
			token:   signRaw(t, jwt.SigningMethodHS256, validClaims(DefaultIssuer), testSecret),
			wantErr: ErrTokenInvalid,
		},
		{
			name:    "wrong issuer",
			token:   signRaw(t, jwt.SigningMethodHS512, validClaims("someone-else"), testSecret),
			wantErr: ErrTokenInvalid,
		},
		{
			name: "missing exp",
			token: signRaw(t, jwt.SigningMethodHS512, UserClaims{
				UserID:           "1",
				RegisteredClaims: jwt.RegisteredClaims{Issuer: DefaultIssuer},
			}, testSecret),
			wantErr: ErrTokenInvalid,
		},
		{
			name: "missing user id",
			token: signRaw(t, jwt.SigningMethodHS512, UserClaims{
				Username:         "ghost",
				RegisteredClaims: validClaims(DefaultIssuer).RegisteredClaims,
			}, testSecret),
			wantErr: ErrEmptyUserID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, codec.Decode(tt.token))

			_, err := codec.Parse(tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCodec_AbsentAndMalformed(t *testing.T) {
	rec := &fakeRecorder{}
	codec := newTestCodec(WithRecorder(rec))

	tests := []struct {
		name    string
		token   string
		wantErr error
		outcome string
	}{
		{name: "empty", token: "", wantErr: ErrNoToken, outcome: OutcomeAbsent},
		{name: "blank", token: "   ", wantErr: ErrNoToken, outcome: OutcomeAbsent},
		{name: "prefix only", token: "Bearer ", wantErr: ErrNoToken, outcome: OutcomeAbsent},
		{name: "padded prefix", token: " \tBearer    ", wantErr: ErrNoToken, outcome: OutcomeAbsent},
		{name: "random string", token: "Bearer randomstring123", wantErr: ErrTokenMalformed, outcome: OutcomeInvalid},
		{name: "three garbage segments", token: "invalid.token.here", wantErr: ErrTokenMalformed, outcome: OutcomeInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec.decodes = nil

			assert.NotPanics(t, func() {
				assert.Nil(t, codec.Decode(tt.token))
			})
			assert.Equal(t, []string{tt.outcome}, rec.decodes)

			_, err := codec.Parse(tt.token)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCodec_ParseWithoutPrefix(t *testing.T) {
	codec := newTestCodec()

	token, err := codec.Encode(models.UserInfo{UserID: "7", Username: "bob"})
	require.NoError(t, err)

	claims, err := codec.Parse(strings.TrimPrefix(token, TokenPrefix))
	require.NoError(t, err)
	assert.Equal(t, "7", claims.UserID)
	assert.Equal(t, "bob", claims.Username)
	assert.Equal(t, DefaultIssuer, claims.Issuer)
}

func TestCodec_CustomIssuerAndTTL(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	codec := NewCodec(CodecConfig{Secret: testSecret, Issuer: "ticket-gateway", TTL: time.Hour},
		setupTestLogger(), WithClock(func() time.Time { return now }))

	assert.Equal(t, time.Hour, codec.TTL())

	token, err := codec.Encode(models.UserInfo{UserID: "1"})
	require.NoError(t, err)

	claims, err := codec.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "ticket-gateway", claims.Issuer)
	assert.Equal(t, now.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())

	// токен другого издателя не принимается
	_, err = newTestCodec(WithClock(func() time.Time { return now })).Parse(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	assert.NotErrorIs(t, err, ErrTokenExpired)
}

func TestCodec_ForeignIssuerWinsOverExpiry(t *testing.T) {
	issuedAt := time.Unix(1_700_000_000, 0)
	foreign := NewCodec(CodecConfig{Secret: testSecret, Issuer: "ticket-gateway", TTL: time.Hour},
		setupTestLogger(), WithClock(func() time.Time { return issuedAt }))

	token, err := foreign.Encode(models.UserInfo{UserID: "1"})
	require.NoError(t, err)

	rec := &fakeRecorder{}
	later := issuedAt.Add(2 * time.Hour)
	codec := newTestCodec(WithRecorder(rec), WithClock(func() time.Time { return later }))

	assert.Nil(t, codec.Decode(token))
	assert.Equal(t, []string{OutcomeInvalid}, rec.decodes)

	_, err = codec.Parse(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	assert.NotErrorIs(t, err, ErrTokenExpired)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)

	// свой истекший токен остается просто истекшим
	own, err := newTestCodec(WithClock(func() time.Time { return issuedAt })).Encode(models.UserInfo{UserID: "1"})
	require.NoError(t, err)
	_, err = newTestCodec(WithClock(func() time.Time { return issuedAt.Add(DefaultTTL + time.Second) })).Parse(own)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.NotErrorIs(t, err, ErrTokenInvalid)
}

func TestCodec_DecodeLogging(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	codec := NewCodec(CodecConfig{Secret: testSecret}, logger)

	t.Run("expired token is silent", func(t *testing.T) {
		logBuf.Reset()
		past := time.Now().Add(-2 * DefaultTTL)
		token, err := newTestCodec(WithClock(func() time.Time { return past })).Encode(models.UserInfo{UserID: "1"})
		require.NoError(t, err)

		assert.Nil(t, codec.Decode(token))
		assert.Empty(t, logBuf.String())
	})

	t.Run("malformed token logged at debug", func(t *testing.T) {
		logBuf.Reset()
		assert.Nil(t, codec.Decode("Bearer not-a-token"))
		assert.Contains(t, logBuf.String(), "level=DEBUG")
		assert.Contains(t, logBuf.String(), "token rejected")
	})
}
