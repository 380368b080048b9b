package models

// Actor is the authenticated staff member performing an operation.
type Actor struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Role       StaffRole   `json:"role"`
	Department *Department `json:"department,omitempty"`
}

// ActorFromStaff derives the acting identity from a directory record.
func ActorFromStaff(s *Staff) Actor {
	return Actor{ID: s.ID, Name: s.Name, Role: s.Role, Department: s.Department}
}

// Admin reports whether the actor holds a central administrative role.
func (a Actor) Admin() bool {
	return a.Role.Central()
}

// HeadOf reports whether the actor is the department head of dept.
func (a Actor) HeadOf(dept Department) bool {
	return a.Role == RoleDepartmentHead && a.Department != nil && *a.Department == dept
}

// CanAudit reports whether the actor may review the teacher's recorded calls.
func (a Actor) CanAudit(teacher *Staff) bool {
	if teacher == nil {
		return false
	}
	if a.Admin() {
		return true
	}
	return teacher.Department != nil && a.HeadOf(*teacher.Department)
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// NormalizePage clamps page and size to sane defaults.
func NormalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 50
	}
	if size > 500 {
		size = 500
	}
	return page, size
}
