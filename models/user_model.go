package models

// User is a back-office operator. EmployeeID links the operator to the
// employee recorded as responsible on the sales they confirm.
type User struct {
	ID         string `bson:"_id" json:"id"`
	Email      string `bson:"email" json:"email"`
	Password   string `bson:"password" json:"-"`
	Username   string `bson:"username" json:"username"`
	EmployeeID string `bson:"employeeId,omitempty" json:"employeeId,omitempty"`
}
