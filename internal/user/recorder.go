package user

// Исходы декодирования токена для метрик
const (
	OutcomeOK      = "ok"
	OutcomeAbsent  = "absent"
	OutcomeExpired = "expired"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// Recorder принимает события кодека и middleware.
// Реализуется metrics.Collector.
type Recorder interface {
	RecordDecode(outcome string)
	RecordTransmit(authenticated bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordDecode(string) {}
func (nopRecorder) RecordTransmit(bool) {}
