package httpapi

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Request bodies, one per operation. Presence and format rules live in the
// binding tags; policy checks such as password length stay in the engine.

type signupRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type subscriptionRequest struct {
	Subscription string `json:"subscription" binding:"required"`
}

type changePasswordRequest struct {
	CurrentPassword   string `json:"currentPassword" binding:"required"`
	NewPassword       string `json:"newPassword" binding:"required"`
	RetypeNewPassword string `json:"retypeNewPassword" binding:"required"`
}

type resetPasswordRequest struct {
	Token             string `json:"token" binding:"required"`
	NewPassword       string `json:"newPassword" binding:"required"`
	RetypeNewPassword string `json:"retypeNewPassword" binding:"required"`
}

type favoriteRequest struct {
	Favorite *bool `json:"favorite"`
}

type listContactsQuery struct {
	Page     int   `form:"page" binding:"omitempty,min=1"`
	Limit    int   `form:"limit" binding:"omitempty,min=1"`
	Favorite *bool `form:"favorite"`
}

var fieldNamesOnce sync.Once

// useJSONFieldNames makes validation errors report json names instead of Go
// field names.
func useJSONFieldNames() {
	fieldNamesOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form"} {
				name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
				if name != "" && name != "-" {
					return name
				}
			}
			return ""
		})
	})
}

// errBadBody marks a request whose body or query could not be bound.
var errBadBody = errors.New("invalid request body")

type bindError struct{ msg string }

func (e bindError) Error() string { return e.msg }
func (e bindError) Unwrap() error { return errBadBody }

func bindJSON(c *gin.Context, dst any) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return bindingError(err)
	}
	return nil
}

func bindQuery(c *gin.Context, dst any) error {
	if err := c.ShouldBindQuery(dst); err != nil {
		return bindingError(err)
	}
	return nil
}

func bindingError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Tag() == "required" {
			return bindError{fmt.Sprintf("Missing required %s field", fe.Field())}
		}
		return bindError{fmt.Sprintf("Invalid %s field", fe.Field())}
	}
	if errors.Is(err, io.EOF) {
		return bindError{"Missing request body"}
	}
	return bindError{"Invalid or missing data"}
}
