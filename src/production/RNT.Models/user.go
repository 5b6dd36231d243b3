package rntmodels

// User roles relevant to alert fan-out. Full account management lives in
// an external service; the coordinator only needs recipients.
const (
	RoleRenter   = "renter"
	RoleOperator = "operator"
)

// User is an alert recipient: the renter of a session or an operator.
type User struct {
	ID        string `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	Role      string `json:"role" db:"role"`
	PushToken string `json:"push_token,omitempty" db:"push_token"`
}
