package session

type staticErr string

func (e staticErr) Error() string { return string(e) }

const (
	ErrInvalidState staticErr = "session: state without room code"
	ErrConcurrent   staticErr = "session: concurrent update"
)
