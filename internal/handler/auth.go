package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/raids-lab/triad/dao/model"
	"github.com/raids-lab/triad/internal/resputil"
	"github.com/raids-lab/triad/internal/util"
	"github.com/raids-lab/triad/pkg/logutils"
)

//nolint:gochecknoinits // This is the standard way to register a gin handler.
func init() {
	Registers = append(Registers, NewAuthMgr)
}

type AuthMgr struct {
	name     string
	conf     *RegisterConfig
	tokenMgr *util.TokenManager
}

func NewAuthMgr(conf *RegisterConfig) Manager {
	return &AuthMgr{
		name:     "auth",
		conf:     conf,
		tokenMgr: util.GetTokenMgr(),
	}
}

func (mgr *AuthMgr) GetName() string { return mgr.name }

func (mgr *AuthMgr) RegisterPublic(g *gin.RouterGroup) {
	g.POST("/login", mgr.Login)          // 用户登录
	g.POST("/signup", mgr.Signup)        // 用户注册
	g.POST("/refresh", mgr.RefreshToken) // 刷新token
}

func (mgr *AuthMgr) RegisterProtected(_ *gin.RouterGroup) {}

func (mgr *AuthMgr) RegisterAdmin(_ *gin.RouterGroup) {}

type (
	LoginReq struct {
		Username string `json:"username" binding:"required"` // 用户名
		Password string `json:"password" binding:"required"` // 密码
	}

	SignupReq struct {
		Username string     `json:"username" binding:"required"`
		Password string     `json:"password" binding:"required,min=8"`
		Email    string     `json:"email" binding:"required,email"`
		Role     model.Role `json:"role" binding:"required,oneof=2 3 4"` // student, supervisor, partner
	}

	RefreshTokenReq struct {
		RefreshToken string `json:"refreshToken" binding:"required"`
	}

	LoginResp struct {
		AccessToken  string         `json:"accessToken"`
		RefreshToken string         `json:"refreshToken"`
		User         model.UserInfo `json:"user"`
	}
)

// Login godoc
// @Summary 用户登录
// @Description 校验用户身份，生成包含平台角色的 JWT Token
// @Tags Auth
// @Accept json
// @Produce json
// @Param data body LoginReq false "查询参数"
// @Success 200 {object} resputil.Response[LoginResp] "登录成功，返回 JWT Token"
// @Failure 400 {object} resputil.Response[any] "请求参数错误"
// @Failure 401 {object} resputil.Response[any] "用户名或密码错误"
// @Router /login [post]
func (mgr *AuthMgr) Login(c *gin.Context) {
	var req LoginReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.HTTPError(c, http.StatusBadRequest, err.Error(), resputil.InvalidRequest)
		return
	}

	l := logutils.Log.WithFields(logutils.Fields{"username": req.Username})

	var user model.User
	err := mgr.conf.DB.WithContext(c).Where("name = ?", req.Username).First(&user).Error
	if err != nil {
		l.Error("user lookup: ", err)
		resputil.HTTPError(c, http.StatusUnauthorized, "Invalid credentials", resputil.InvalidCredentials)
		return
	}
	if user.Password == nil ||
		bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(req.Password)) != nil {
		l.Error("invalid credentials")
		resputil.HTTPError(c, http.StatusUnauthorized, "Invalid credentials", resputil.InvalidCredentials)
		return
	}
	if user.Status != model.StatusActive {
		l.Error("user is not active")
		resputil.HTTPError(c, http.StatusUnauthorized, "User is not active", resputil.UserNotAllowed)
		return
	}

	mgr.respondWithTokens(c, &user)
}

// Signup godoc
// @Summary 用户注册
// @Description 注册学生、导师或企业账号，管理员账号不支持自助注册
// @Tags Auth
// @Accept json
// @Produce json
// @Success 200 {object} resputil.Response[LoginResp] "注册成功"
// @Failure 400 {object} resputil.Response[any] "请求参数错误"
// @Router /signup [post]
func (mgr *AuthMgr) Signup(c *gin.Context) {
	var req SignupReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.HTTPError(c, http.StatusBadRequest, err.Error(), resputil.InvalidRequest)
		return
	}

	var existing model.User
	err := mgr.conf.DB.WithContext(c).Where("name = ?", req.Username).First(&existing).Error
	if err == nil {
		resputil.Error(c, "username already taken", resputil.InvalidRequest)
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		resputil.Error(c, err.Error(), resputil.NotSpecified)
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		resputil.Error(c, "failed to hash password", resputil.NotSpecified)
		return
	}
	hashed := string(hash)
	user := model.User{
		Name:     req.Username,
		Email:    &req.Email,
		Password: &hashed,
		Role:     req.Role,
		Status:   model.StatusActive,
	}
	if err := mgr.conf.DB.WithContext(c).Create(&user).Error; err != nil {
		logutils.Log.Error("create user: ", err)
		resputil.Error(c, "failed to create user", resputil.NotSpecified)
		return
	}

	mgr.respondWithTokens(c, &user)
}

// RefreshToken godoc
// @Summary 刷新token
// @Description 校验refresh token，生成新的token对
// @Tags Auth
// @Accept json
// @Produce json
// @Success 200 {object} resputil.Response[LoginResp] "刷新成功"
// @Failure 401 {object} resputil.Response[any] "token过期或无效"
// @Router /refresh [post]
func (mgr *AuthMgr) RefreshToken(c *gin.Context) {
	var req RefreshTokenReq
	if err := c.ShouldBind(&req); err != nil {
		resputil.HTTPError(c, http.StatusBadRequest, err.Error(), resputil.InvalidRequest)
		return
	}
	msg, err := mgr.tokenMgr.CheckRefreshToken(req.RefreshToken)
	if err != nil {
		resputil.HTTPError(c, http.StatusUnauthorized, "Invalid refresh token", resputil.TokenExpired)
		return
	}
	var user model.User
	if err := mgr.conf.DB.WithContext(c).First(&user, msg.UserID).Error; err != nil {
		resputil.HTTPError(c, http.StatusUnauthorized, "User not found", resputil.InvalidCredentials)
		return
	}
	if user.Status != model.StatusActive {
		resputil.HTTPError(c, http.StatusUnauthorized, "User is not active", resputil.UserNotAllowed)
		return
	}
	mgr.respondWithTokens(c, &user)
}

func (mgr *AuthMgr) respondWithTokens(c *gin.Context, user *model.User) {
	msg := util.JWTMessage{
		UserID:       user.ID,
		Username:     user.Name,
		RolePlatform: user.Role,
	}
	accessToken, refreshToken, err := mgr.tokenMgr.CreateTokens(&msg)
	if err != nil {
		resputil.HTTPError(c, http.StatusInternalServerError, err.Error(), resputil.NotSpecified)
		return
	}
	resputil.Success(c, LoginResp{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User: model.UserInfo{
			ID:       user.ID,
			Name:     user.Name,
			Nickname: user.Nickname,
			Role:     user.Role,
		},
	})
}
