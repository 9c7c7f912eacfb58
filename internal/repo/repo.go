package repo

import (
	"errors"
	"regexp"

	"gorm.io/gorm"
)

type GormRepo struct {
	DB *gorm.DB
}

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserAlreadyExists  = errors.New("user already exists")
)

// ErrPruneExhausted is returned when an insert still fails after the bounded
// number of column-pruning attempts.
var ErrPruneExhausted = errors.New("insert failed after pruning attempts")

const maxPruneAttempts = 8

// The backend reports an unknown column differently per engine; both shapes
// carry the column name, which is all the pruning loop needs.
var missingColumnPatterns = []*regexp.Regexp{
	regexp.MustCompile(`column "([^"]+)" of relation "[^"]+" does not exist`),
	regexp.MustCompile(`has no column named (\w+)`),
}

func missingColumn(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	msg := err.Error()
	for _, re := range missingColumnPatterns {
		if m := re.FindStringSubmatch(msg); m != nil {
			return m[1], true
		}
	}
	return "", false
}
