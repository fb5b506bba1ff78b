package echoapi

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

const (
	contextTokenKey = "userToken"
	contextUserKey  = "user"
)

// Claims represents the authorization claims transmitted via a JWT.
// Roles are not carried: they are read from the store on every request.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Email        string `json:"email,omitempty"`
}

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
}

// optionalJWT lets anonymous requests through. A token, when sent, must be valid.
func (s *Server) optionalJWT() middleware.JWTConfig {
	config := s.jwt
	config.Skipper = func(ctx echo.Context) bool {
		return ctx.Request().Header.Get(echo.HeaderAuthorization) == ""
	}
	return config
}

func NewClaims(conf *core.Config, usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Email:        usr.Email,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	method := jwt.GetSigningMethod(middleware.AlgorithmHS256)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextUser returns the User set by ctxUserMiddleware, or nil for anonymous requests.
func getContextUser(ctx echo.Context) *user.User {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return &usr
	}
	return nil
}

// mustGetContextUser is getContextUser for authed routes.
func mustGetContextUser(ctx echo.Context) (user.User, error) {
	if usr := getContextUser(ctx); usr != nil {
		return *usr, nil
	}
	return user.User{}, errUnauthorized
}

func (s *Server) newToken(usr user.User, origIat ...int64) (string, error) {
	token, err := GenerateToken(s.deps.Conf, NewClaims(s.deps.Conf, usr, origIat...))
	return token, errors.Wrap(err, "generating token")
}

func (s *Server) refreshToken(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}
	usr, err := mustGetContextUser(ctx)
	if err != nil {
		return "", err
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(s.deps.Conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}
	return s.newToken(usr, claims.OrigIssuedAt)
}
