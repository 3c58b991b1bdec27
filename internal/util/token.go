package util

import (
	"sync"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/raids-lab/triad/dao/model"
	"github.com/raids-lab/triad/pkg/config"
	"github.com/raids-lab/triad/pkg/logutils"
)

type (
	JWTClaims struct {
		UserID       uint       `json:"ui"`
		Username     string     `json:"un"`
		RolePlatform model.Role `json:"rp"`
		jwt.RegisteredClaims
	}
	JWTMessage struct {
		UserID       uint       `json:"userID"`
		Username     string     `json:"username"`
		RolePlatform model.Role `json:"rolePlatform"` // Role on the platform (student, supervisor, partner, admin)
	}
)

const (
	accessTokenExpiryHour  = 2
	refreshTokenExpiryHour = 48
)

// TokenManager signs the two token kinds with separate secrets, so a leaked
// refresh token cannot be replayed as an access token (and vice versa).
type TokenManager struct {
	accessSecret    string
	refreshSecret   string
	accessTokenTTL  int
	refreshTokenTTL int
}

var (
	once     sync.Once
	tokenMgr *TokenManager
)

func GetTokenMgr() *TokenManager {
	once.Do(func() {
		cfg := config.GetConfig()
		tokenMgr = &TokenManager{
			accessSecret:    cfg.Auth.AccessTokenSecret,
			refreshSecret:   cfg.Auth.RefreshTokenSecret,
			accessTokenTTL:  accessTokenExpiryHour,
			refreshTokenTTL: refreshTokenExpiryHour,
		}
	})
	return tokenMgr
}

func (tm *TokenManager) createToken(msg *JWTMessage, secret string, ttl int) (string, error) {
	expiresAt := time.Now().Add(time.Hour * time.Duration(ttl))

	claims := &JWTClaims{
		UserID:       msg.UserID,
		Username:     msg.Username,
		RolePlatform: msg.RolePlatform,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// CreateTokens creates a new access token and a new refresh token
func (tm *TokenManager) CreateTokens(msg *JWTMessage) (
	accessToken string, refreshToken string, err error) {
	accessToken, err = tm.createToken(msg, tm.accessSecret, tm.accessTokenTTL)
	if err != nil {
		logutils.Log.Error(err)
		return "", "", err
	}
	refreshToken, err = tm.createToken(msg, tm.refreshSecret, tm.refreshTokenTTL)
	if err != nil {
		logutils.Log.Error(err)
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

func (tm *TokenManager) checkToken(requestToken, secret string) (JWTMessage, error) {
	claims := JWTClaims{}
	_, err := jwt.ParseWithClaims(requestToken, &claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	return JWTMessage{
		UserID:       claims.UserID,
		Username:     claims.Username,
		RolePlatform: claims.RolePlatform,
	}, err
}

// CheckToken validates an access token.
func (tm *TokenManager) CheckToken(requestToken string) (JWTMessage, error) {
	return tm.checkToken(requestToken, tm.accessSecret)
}

// CheckRefreshToken validates a refresh token.
func (tm *TokenManager) CheckRefreshToken(requestToken string) (JWTMessage, error) {
	return tm.checkToken(requestToken, tm.refreshSecret)
}
