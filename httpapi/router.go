package httpapi

import (
	"net/http"

	"github.com/MrEthical07/phonebook"
	"github.com/MrEthical07/phonebook/contacts"
	"github.com/MrEthical07/phonebook/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Deps are the collaborators of the router. Engine and Contacts are
// required.
type Deps struct {
	Engine   *phonebook.Engine
	Contacts *contacts.Service
	Logger   *zap.Logger

	// Metrics is mounted at GET /metrics when set.
	Metrics http.Handler
	// AvatarDir is served under AvatarPrefix when set.
	AvatarDir    string
	AvatarPrefix string
	// MaxUploadBytes bounds multipart memory for avatar uploads.
	MaxUploadBytes int64
}

type handler struct {
	engine   *phonebook.Engine
	contacts *contacts.Service
	logger   *zap.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) *gin.Engine {
	useJSONFieldNames()

	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &handler{engine: d.Engine, contacts: d.Contacts, logger: logger}

	r := gin.New()
	if d.MaxUploadBytes > 0 {
		r.MaxMultipartMemory = d.MaxUploadBytes
	}
	r.Use(requestID(), requestLogger(logger), gin.Recovery(), clientContext())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}
	if d.AvatarDir != "" {
		prefix := d.AvatarPrefix
		if prefix == "" {
			prefix = "/avatars"
		}
		r.Static(prefix, d.AvatarDir)
	}

	guard := middleware.GinGuard(d.Engine)

	users := r.Group("/api/users")
	{
		users.POST("/signup", h.signup)
		users.GET("/verify/:verificationToken", h.verifyEmail)
		users.POST("/verify", h.resendVerification)
		users.POST("/login", h.login)
		users.POST("/refresh", h.refresh)
		users.GET("/logout", h.logout)
		users.POST("/forgot-password", h.forgotPassword)
		users.PATCH("/forgot-password-reset", h.forgotPasswordReset)

		users.GET("/current", guard, h.current)
		users.PATCH("/subscription", guard, h.updateSubscription)
		users.PATCH("/avatar", guard, h.updateAvatar)
		users.PATCH("/reset-password", guard, h.changePassword)
	}

	list := r.Group("/api/contacts", guard)
	{
		list.GET("", h.listContacts)
		list.GET("/:contactId", h.getContact)
		list.POST("", h.addContact)
		list.PUT("/:contactId", h.updateContact)
		list.DELETE("/:contactId", h.removeContact)
		list.PATCH("/:contactId/favorite", h.setFavorite)
	}

	return r
}

func principal(c *gin.Context) *phonebook.Principal {
	v, ok := c.Get(middleware.PrincipalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*phonebook.Principal)
	return p
}
