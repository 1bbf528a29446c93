package engine

// Outcome is the terminal state of one recognition attempt. Every attempt
// ends in exactly one of these; they are stable codes the transport layer
// maps to HTTP statuses and user messages.
type Outcome string

const (
	OutcomeMarked           Outcome = "marked"
	OutcomeAlreadyMarked    Outcome = "already_marked"
	OutcomeNoMatch          Outcome = "no_match"
	OutcomeNoFaceDetected   Outcome = "no_face_detected"
	OutcomeSessionNotFound  Outcome = "session_not_found"
	OutcomeExpired          Outcome = "session_expired"
	OutcomeDenied           Outcome = "access_denied"
	OutcomeStoreUnavailable Outcome = "store_unavailable"
	OutcomeExtractionFailed Outcome = "extraction_failed"
)

// Message returns the human-readable message for the outcome. Denied and
// Expired deliberately read differently: the student's next step differs.
func (o Outcome) Message() string {
	switch o {
	case OutcomeMarked:
		return "Attendance marked."
	case OutcomeAlreadyMarked:
		return "Attendance was already marked for today."
	case OutcomeNoMatch:
		return "Face not recognized. Try again with better lighting."
	case OutcomeNoFaceDetected:
		return "No face detected in the frame. Face the camera and try again."
	case OutcomeSessionNotFound:
		return "Invalid session link."
	case OutcomeExpired:
		return "This session has expired. Ask your teacher to share a new link."
	case OutcomeDenied:
		return "Access denied: you are not on the teacher's network or your token is wrong."
	case OutcomeStoreUnavailable:
		return "Attendance could not be checked right now. Try again in a moment."
	case OutcomeExtractionFailed:
		return "The frame could not be processed. Try again."
	default:
		return string(o)
	}
}

// Mutated reports whether the attempt appended a mark to the ledger.
func (o Outcome) Mutated() bool {
	return o == OutcomeMarked
}
