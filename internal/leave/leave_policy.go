package leave

const defaultMaxReasonLength = 200

// Policy holds the deployment switches of the lifecycle engine.
type Policy struct {
	// CheckBalanceOnSubmit refuses a submission the current balance could not
	// cover. Nothing is reserved until approval either way.
	CheckBalanceOnSubmit bool
	// AllowCancelDecided lets owners delete approved or rejected leaves.
	AllowCancelDecided bool
	// ReleaseOnCancel credits the days of a cancelled approved leave back.
	ReleaseOnCancel bool
	// AllowSelfDecision lets a manager or admin approve or reject a leave
	// they submitted themselves.
	AllowSelfDecision bool
	MaxReasonLength int
}

func DefaultPolicy() Policy {
	return Policy{
		ReleaseOnCancel: true,
		MaxReasonLength: defaultMaxReasonLength,
	}
}
