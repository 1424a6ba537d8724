package planning

import "errors"

var (
	ErrObjectiveNotFound = errors.New("objective not found")
	ErrDuplicateMember   = errors.New("team member already exists")
	ErrCompanyNotFound   = errors.New("company not found")
)
