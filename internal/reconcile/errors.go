package reconcile

import "fmt"

// Kind identifies why a submission was rejected.
type Kind string

const (
	KindEventNotFound             Kind = "EventNotFound"
	KindCheckpointNotFound        Kind = "CheckpointNotFound"
	KindTeamNotFound              Kind = "TeamNotFound"
	KindAlreadyFinished           Kind = "AlreadyFinished"
	KindAlreadyRecordedAtFinalLeg Kind = "AlreadyRecordedAtFinalLeg"
	KindDuplicateRecord           Kind = "DuplicateRecord"
	KindValidation                Kind = "ValidationError"
)

// Category groups kinds the way callers react to them.
type Category int

const (
	CategoryNotFound Category = iota + 1
	CategoryAlreadyFinished
	CategoryDuplicate
	CategoryValidation
)

// Error is a domain rejection. It never represents a store failure.
type Error struct {
	Kind   Kind
	Detail string
}

// Sentinels for errors.Is; only the Kind is compared.
var (
	ErrEventNotFound             = &Error{Kind: KindEventNotFound, Detail: "event not found"}
	ErrCheckpointNotFound        = &Error{Kind: KindCheckpointNotFound, Detail: "checkpoint not found"}
	ErrTeamNotFound              = &Error{Kind: KindTeamNotFound, Detail: "team not found"}
	ErrAlreadyFinished           = &Error{Kind: KindAlreadyFinished, Detail: "team has already finished all legs"}
	ErrAlreadyRecordedAtFinalLeg = &Error{Kind: KindAlreadyRecordedAtFinalLeg, Detail: "team has already finished the race"}
	ErrDuplicateRecord           = &Error{Kind: KindDuplicateRecord, Detail: "record already exists"}
	ErrValidation                = &Error{Kind: KindValidation, Detail: "invalid request"}
)

func (e *Error) Error() string {
	return e.Detail
}

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Category reports which group the error belongs to.
func (e *Error) Category() Category {
	switch e.Kind {
	case KindEventNotFound, KindCheckpointNotFound, KindTeamNotFound:
		return CategoryNotFound
	case KindAlreadyFinished, KindAlreadyRecordedAtFinalLeg:
		return CategoryAlreadyFinished
	case KindDuplicateRecord:
		return CategoryDuplicate
	default:
		return CategoryValidation
	}
}

// Errorf builds an Error of the given kind with a formatted detail.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}
