package users

// User is a record of the working collection, in internal vocabulary.
type User struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Gender Gender `json:"gender"`
	Status Status `json:"status"`
}

// RemoteUser is a record as returned by the remote users API.
type RemoteUser struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Gender string `json:"gender"`
	Status string `json:"status"`
}

// FormValues are the operator-editable fields of a record.
type FormValues struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Gender string `json:"gender"`
	Status string `json:"status"`
}

func (u User) FormValues() FormValues {
	return FormValues{
		Name:   u.Name,
		Email:  u.Email,
		Gender: string(u.Gender),
		Status: string(u.Status),
	}
}

func (u User) withForm(v FormValues) User {
	u.Name = v.Name
	u.Email = v.Email
	u.Gender = Gender(v.Gender)
	u.Status = Status(v.Status)
	return u
}

// IDsOf returns the ids of list in order.
func IDsOf(list []User) []int64 {
	out := make([]int64, 0, len(list))
	for _, u := range list {
		out = append(out, u.ID)
	}
	return out
}
