package main

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"precoscan/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

func setupRoutes(r *gin.Engine, scan *scannerService) {
	r.POST("/register", registerHandler)
	r.POST("/login", loginHandler)
	r.POST("/refresh", refreshHandler)
	r.POST("/revoke_refresh", revokeRefreshHandler)

	authGroup := r.Group("")
	authGroup.Use(jwtAuthMiddleware())
	authGroup.GET("/me", meHandler)
	authGroup.GET("/cart", listCartHandler)
	authGroup.POST("/cart", addCartItemHandler)
	authGroup.PUT("/cart/:id", updateCartItemHandler)
	authGroup.DELETE("/cart/:id", removeCartItemHandler)
	authGroup.DELETE("/cart", clearCartHandler)
	authGroup.POST("/cart/checkout", checkoutHandler)
	authGroup.GET("/history", listHistoryHandler)
	authGroup.POST("/lists", createListHandler)
	authGroup.GET("/lists", listListsHandler)
	authGroup.GET("/lists/:id", getListHandler)
	authGroup.DELETE("/lists/:id", deleteListHandler)
	authGroup.POST("/lists/:id/items", addListItemHandler)
	authGroup.PUT("/lists/:id/items/:itemID", updateListItemHandler)
	authGroup.POST("/prices", reportPriceHandler)
	authGroup.GET("/prices", queryPricesHandler)

	// The scanner works with or without a logged-in user; the identity only
	// decides where confirmed products are persisted.
	scanGroup := r.Group("/scanner")
	scanGroup.Use(optionalAuthMiddleware())
	scanGroup.POST("/start", scan.startHandler)
	scanGroup.POST("/frames", scan.frameHandler)
	scanGroup.GET("/status", scan.statusHandler)
	scanGroup.POST("/price", scan.selectPriceHandler)
	scanGroup.POST("/confirm", scan.confirmHandler)
	scanGroup.POST("/cancel", scan.cancelHandler)
	scanGroup.POST("/stop", scan.stopHandler)
}

func parseBearerToken(c *gin.Context) (jwt.MapClaims, bool) {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) < 8 || authHeader[:7] != "Bearer " {
		return nil, false
	}
	token, err := jwt.Parse(authHeader[7:], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrInvalidKeyType
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, false
	}
	return claims, true
}

func jwtAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseBearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			c.Abort()
			return
		}
		username, _ := claims["username"].(string)
		c.Set("username", username)
		c.Next()
	}
}

// optionalAuthMiddleware resolves the user when a valid token is present but
// lets anonymous requests through untouched.
func optionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := parseBearerToken(c); ok {
			if username, _ := claims["username"].(string); username != "" {
				c.Set("username", username)
			}
		}
		c.Next()
	}
}

func meHandler(c *gin.Context) {
	usernameVal, _ := c.Get("username")
	if usernameVal == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "context missing username"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"username": usernameVal.(string)})
}

// getUserFromContext fetches the currently authenticated user using the username set by jwtAuthMiddleware
func getUserFromContext(c *gin.Context) (*models.User, bool) {
	unameVal, _ := c.Get("username")
	if unameVal == nil {
		return nil, false
	}
	var user models.User
	if err := db.Where("username = ?", unameVal.(string)).First(&user).Error; err != nil {
		return nil, false
	}
	return &user, true
}

func registerHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := RegisterUser(req.Username, req.Password); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "user registered successfully"})
}

func loginHandler(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := Authenticate(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": user.Username,
		"exp":      time.Now().Add(time.Hour * 24).Unix(),
	})
	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	refreshToken, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "login successful", "token": tokenString, "refresh_token": refreshToken})
}

// createAndStoreRefreshToken generates a random refresh token, stores its hash with expiry and returns the raw token string
func createAndStoreRefreshToken(userID uint) (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)
	h := sha256.Sum256([]byte(token))
	rt := models.RefreshToken{UserID: userID, TokenHash: hex.EncodeToString(h[:]), ExpiresAt: time.Now().Add(30 * 24 * time.Hour)}
	if err := db.Create(&rt).Error; err != nil {
		return "", err
	}
	return token, nil
}

func findRefreshTokenByRaw(token string) (*models.RefreshToken, error) {
	h := sha256.Sum256([]byte(token))
	th := hex.EncodeToString(h[:])
	var rt models.RefreshToken
	if err := db.Where("token_hash = ?", th).First(&rt).Error; err != nil {
		return nil, err
	}
	return &rt, nil
}

// refreshHandler exchanges a refresh token for a new access token and rotates the refresh token
func refreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil || rt.Revoked || time.Now().After(rt.ExpiresAt) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired refresh token"})
		return
	}
	var user models.User
	if err := db.First(&user, rt.UserID).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": user.Username,
		"exp":      time.Now().Add(15 * time.Minute).Unix(),
	})
	tokenString, err := token.SignedString(jwtSecret)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	// rotate refresh token: revoke existing and create new one
	db.Model(&models.RefreshToken{}).Where("id = ?", rt.ID).Update("revoked", true)
	newRT, err := createAndStoreRefreshToken(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to rotate refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": tokenString, "refresh_token": newRT})
}

// revokeRefreshHandler revokes a given refresh token (useful on logout)
func revokeRefreshHandler(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rt, err := findRefreshTokenByRaw(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "refresh token not found"})
		return
	}
	rt.Revoked = true
	if err := db.Save(rt).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "refresh token revoked"})
}

func listCartHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var items []models.CartItem
	if err := db.Where("user_id = ?", user.ID).Order("id desc").Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	var total int64
	for _, it := range items {
		total += it.PrecoAvulso * int64(it.Quantity)
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
}

func addCartItemHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var req struct {
		Name         string `json:"name" binding:"required"`
		Quantity     int    `json:"quantity"`
		PrecoAvulso  int64  `json:"preco_avulso" binding:"required"`
		PrecoCartao  int64  `json:"preco_cartao"`
		PrecoAtacado int64  `json:"preco_atacado"`
		Unit         string `json:"unit"`
		Market       string `json:"market"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}
	item := models.CartItem{
		UserID:       user.ID,
		Name:         req.Name,
		Quantity:     req.Quantity,
		PrecoAvulso:  req.PrecoAvulso,
		PrecoCartao:  req.PrecoCartao,
		PrecoAtacado: req.PrecoAtacado,
		Unit:         req.Unit,
		Market:       req.Market,
	}
	if err := db.Create(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": item.ID})
}

func updateCartItemHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var item models.CartItem
	if err := db.Where("id = ? AND user_id = ?", c.Param("id"), user.ID).First(&item).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}
	var req struct {
		Quantity    *int    `json:"quantity"`
		PrecoAvulso *int64  `json:"preco_avulso"`
		Name        *string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Quantity != nil {
		if *req.Quantity <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be positive"})
			return
		}
		item.Quantity = *req.Quantity
	}
	if req.PrecoAvulso != nil {
		item.PrecoAvulso = *req.PrecoAvulso
	}
	if req.Name != nil {
		item.Name = *req.Name
	}
	if err := db.Save(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, item)
}

func removeCartItemHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	res := db.Where("id = ? AND user_id = ?", c.Param("id"), user.ID).Delete(&models.CartItem{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "item removed"})
}

func clearCartHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	if err := db.Where("user_id = ?", user.ID).Delete(&models.CartItem{}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "clear failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "cart cleared"})
}

// checkoutHandler freezes the current cart into purchase history and clears it.
func checkoutHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var req struct {
		Market string `json:"market"`
	}
	_ = c.ShouldBindJSON(&req)

	var items []models.CartItem
	if err := db.Where("user_id = ?", user.ID).Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	if len(items) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cart is empty"})
		return
	}

	hist := models.PurchaseHistory{UserID: user.ID, Market: req.Market, ItemCount: len(items)}
	for _, it := range items {
		hist.Total += it.PrecoAvulso * int64(it.Quantity)
		hist.Items = append(hist.Items, models.PurchaseItem{
			Name:        it.Name,
			Quantity:    it.Quantity,
			PrecoAvulso: it.PrecoAvulso,
			Unit:        it.Unit,
		})
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&hist).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", user.ID).Delete(&models.CartItem{}).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "checkout failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": hist.ID, "total": hist.Total, "item_count": hist.ItemCount})
}

func listHistoryHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var hist []models.PurchaseHistory
	if err := db.Preload("Items").Where("user_id = ?", user.ID).Order("id desc").Limit(50).Find(&hist).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, hist)
}

func createListHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var req struct {
		Name  string `json:"name" binding:"required"`
		Items []struct {
			Name        string `json:"name" binding:"required"`
			Quantity    int    `json:"quantity"`
			PrecoAvulso int64  `json:"preco_avulso"`
			Unit        string `json:"unit"`
		} `json:"items"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	list := models.SavedList{UserID: user.ID, Name: req.Name}
	for _, it := range req.Items {
		qty := it.Quantity
		if qty <= 0 {
			qty = 1
		}
		list.Items = append(list.Items, models.SavedListItem{
			Name:        it.Name,
			Quantity:    qty,
			PrecoAvulso: it.PrecoAvulso,
			Unit:        it.Unit,
		})
	}
	if err := db.Create(&list).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": list.ID})
}

func listListsHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var lists []models.SavedList
	if err := db.Preload("Items").Where("user_id = ?", user.ID).Order("id desc").Find(&lists).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, lists)
}

func getListHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var list models.SavedList
	if err := db.Preload("Items").Where("id = ? AND user_id = ?", c.Param("id"), user.ID).First(&list).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "list not found"})
		return
	}
	c.JSON(http.StatusOK, list)
}

func deleteListHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	res := db.Where("id = ? AND user_id = ?", c.Param("id"), user.ID).Delete(&models.SavedList{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "list not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "list deleted"})
}

func addListItemHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var list models.SavedList
	if err := db.Where("id = ? AND user_id = ?", c.Param("id"), user.ID).First(&list).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "list not found"})
		return
	}
	var req struct {
		Name        string `json:"name" binding:"required"`
		Quantity    int    `json:"quantity"`
		PrecoAvulso int64  `json:"preco_avulso"`
		Unit        string `json:"unit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 1
	}
	item := models.SavedListItem{
		SavedListID: list.ID,
		Name:        req.Name,
		Quantity:    req.Quantity,
		PrecoAvulso: req.PrecoAvulso,
		Unit:        req.Unit,
	}
	if err := db.Create(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": item.ID})
}

func updateListItemHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var list models.SavedList
	if err := db.Where("id = ? AND user_id = ?", c.Param("id"), user.ID).First(&list).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "list not found"})
		return
	}
	var item models.SavedListItem
	if err := db.Where("id = ? AND saved_list_id = ?", c.Param("itemID"), list.ID).First(&item).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
		return
	}
	var req struct {
		Quantity    *int    `json:"quantity"`
		PrecoAvulso *int64  `json:"preco_avulso"`
		Name        *string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Quantity != nil {
		if *req.Quantity <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quantity must be positive"})
			return
		}
		item.Quantity = *req.Quantity
	}
	if req.PrecoAvulso != nil {
		item.PrecoAvulso = *req.PrecoAvulso
	}
	if req.Name != nil {
		item.Name = *req.Name
	}
	if err := db.Save(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, item)
}

// reportPriceHandler stores one crowd-sourced price observation.
func reportPriceHandler(c *gin.Context) {
	user, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	var req struct {
		ProductName string   `json:"product_name" binding:"required"`
		Price       int64    `json:"price" binding:"required"`
		PriceKind   string   `json:"price_kind"`
		Market      string   `json:"market"`
		Latitude    *float64 `json:"latitude"`
		Longitude   *float64 `json:"longitude"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	uid := user.ID
	gp := models.GlobalPrice{
		ProductName: req.ProductName,
		Price:       req.Price,
		PriceKind:   req.PriceKind,
		Market:      req.Market,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		UserID:      &uid,
	}
	if err := db.Create(&gp).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": gp.ID})
}

func queryPricesHandler(c *gin.Context) {
	_, ok := getUserFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}
	q := db.Model(&models.GlobalPrice{})
	if product := c.Query("product"); product != "" {
		q = q.Where("product_name ILIKE ?", "%"+product+"%")
	}
	if market := c.Query("market"); market != "" {
		q = q.Where("market = ?", market)
	}
	var prices []models.GlobalPrice
	if err := q.Order("id desc").Limit(100).Find(&prices).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, prices)
}
