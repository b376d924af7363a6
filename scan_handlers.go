package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"precoscan/models"
	"precoscan/pkg/scanner"
	"precoscan/pkg/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// scannerService owns at most one live capture pipeline. The HTTP shell
// drives it: frames are uploaded into a per-session spool directory, the
// scheduler consumes them, and confirmed products land either in the user's
// cart or in the device-local store when nobody is logged in.
type scannerService struct {
	cfg   scanner.Config
	local *store.LocalCart
	log   *logrus.Entry

	mu     sync.Mutex
	sched  *scanner.Scheduler
	record *models.ScanRecord
	userID *uint
	spool  string
	added  int
}

func newScannerService(cfg scanner.Config, local *store.LocalCart) *scannerService {
	return &scannerService{
		cfg:   cfg,
		local: local,
		log:   logrus.WithField("component", "scanner-http"),
	}
}

func (s *scannerService) startHandler(c *gin.Context) {
	var req struct {
		Market    string   `json:"market"`
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
		Label     string   `json:"label"`
	}
	_ = c.ShouldBindJSON(&req)

	var userID *uint
	if user, ok := getUserFromContext(c); ok {
		uid := user.ID
		userID = &uid
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sched != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "a scan session is already active"})
		return
	}

	spool := filepath.Join(spoolBaseDir(), uuid.NewString())
	if err := os.MkdirAll(spool, 0755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create frame spool"})
		return
	}

	// The record is bookkeeping; a failed insert must not block scanning.
	record := &models.ScanRecord{
		UserID:    userID,
		Market:    req.Market,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Label:     req.Label,
		Status:    "draft",
	}
	if err := db.Create(record).Error; err != nil {
		s.log.WithError(err).Warn("scan record insert failed")
		record = nil
	}

	rec, err := scanner.NewTesseractRecognizer(s.cfg.Language)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "OCR engine unavailable: " + err.Error()})
		return
	}

	sched := scanner.NewScheduler(s.cfg, scanner.NewSpoolSource(spool), rec, scanner.Callbacks{
		OnProductAdded: func(p scanner.Product) { s.persistProduct(p) },
		OnError:        func(msg string) { s.log.WithField("cause", msg).Warn("scan session error") },
	})
	if err := sched.Start(context.Background()); err != nil {
		_ = rec.Close()
		var camErr *scanner.CameraError
		if errors.As(err, &camErr) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": camErr.Message()})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	s.sched = sched
	s.record = record
	s.userID = userID
	s.spool = spool
	s.added = 0
	c.JSON(http.StatusOK, gin.H{"session": sched.Session().Snapshot(), "spool": spool})
}

// frameHandler accepts one multipart frame and drops it into the spool for
// the watcher to pick up.
func (s *scannerService) frameHandler(c *gin.Context) {
	s.mu.Lock()
	spool := s.spool
	active := s.sched != nil
	s.mu.Unlock()
	if !active {
		c.JSON(http.StatusConflict, gin.H{"error": "no active scan session"})
		return
	}

	file, err := c.FormFile("frame")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "frame missing"})
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	switch ext {
	case ".png", ".jpg", ".jpeg":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported frame format"})
		return
	}
	if file.Size > 10*1024*1024 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "frame too large (max 10MB)"})
		return
	}
	target := filepath.Join(spool, uuid.NewString()+ext)
	if err := c.SaveUploadedFile(file, target); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "save failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "frame accepted"})
}

func (s *scannerService) statusHandler(c *gin.Context) {
	s.mu.Lock()
	sched := s.sched
	s.mu.Unlock()
	if sched == nil {
		c.JSON(http.StatusOK, gin.H{"status": "idle"})
		return
	}
	c.JSON(http.StatusOK, sched.Session().Snapshot())
}

func (s *scannerService) selectPriceHandler(c *gin.Context) {
	var req struct {
		Amount int64 `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sched, ok := s.activeScheduler(c)
	if !ok {
		return
	}
	if err := sched.Session().SelectPrice(req.Amount); err != nil {
		if errors.Is(err, scanner.ErrNoPending) {
			c.JSON(http.StatusConflict, gin.H{"error": "no pending detection"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sched.Session().Snapshot())
}

func (s *scannerService) confirmHandler(c *gin.Context) {
	var req struct {
		Price int64 `json:"price"`
	}
	_ = c.ShouldBindJSON(&req)
	sched, ok := s.activeScheduler(c)
	if !ok {
		return
	}
	if err := sched.Session().Confirm(req.Price); err != nil {
		if errors.Is(err, scanner.ErrNoPending) {
			c.JSON(http.StatusConflict, gin.H{"error": "no pending detection"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sched.Session().Snapshot())
}

func (s *scannerService) cancelHandler(c *gin.Context) {
	sched, ok := s.activeScheduler(c)
	if !ok {
		return
	}
	if err := sched.Session().Cancel(); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "no pending detection"})
		return
	}
	c.JSON(http.StatusOK, sched.Session().Snapshot())
}

func (s *scannerService) stopHandler(c *gin.Context) {
	s.mu.Lock()
	sched := s.sched
	record := s.record
	spool := s.spool
	added := s.added
	s.sched = nil
	s.record = nil
	s.userID = nil
	s.spool = ""
	s.mu.Unlock()

	if sched == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "no active scan session"})
		return
	}

	snap := sched.Session().Snapshot()
	sched.Stop()
	if err := os.RemoveAll(spool); err != nil {
		s.log.WithError(err).Debug("spool cleanup")
	}
	if record != nil {
		record.Status = "confirmed"
		record.ItemsAdded = added
		if err := db.Save(record).Error; err != nil {
			s.log.WithError(err).Warn("scan record update failed")
		}
	}
	c.JSON(http.StatusOK, gin.H{"added": snap.Added, "total": snap.Total, "items_added": added})
}

func (s *scannerService) activeScheduler(c *gin.Context) (*scanner.Scheduler, bool) {
	s.mu.Lock()
	sched := s.sched
	s.mu.Unlock()
	if sched == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "no active scan session"})
		return nil, false
	}
	return sched, true
}

// persistProduct stores one confirmed detection. Persistence failures are
// logged and swallowed; the capture session must keep running either way.
func (s *scannerService) persistProduct(p scanner.Product) {
	s.mu.Lock()
	userID := s.userID
	var recordID uint
	var market string
	var lat, lng *float64
	if s.record != nil {
		recordID = s.record.ID
		market = s.record.Market
		lat, lng = s.record.Latitude, s.record.Longitude
	}
	s.mu.Unlock()

	avulso, atacado, cartao := tierAmounts(p)

	if userID == nil {
		_, err := s.local.Add(store.LocalItem{
			Name:         p.Name,
			Quantity:     1,
			PrecoAvulso:  avulso,
			PrecoCartao:  cartao,
			PrecoAtacado: atacado,
			Unit:         p.Unit,
		})
		if err != nil {
			s.log.WithError(err).Warn("local cart insert failed")
			return
		}
	} else {
		item := models.CartItem{
			UserID:       *userID,
			Name:         p.Name,
			Quantity:     1,
			PrecoAvulso:  avulso,
			PrecoCartao:  cartao,
			PrecoAtacado: atacado,
			Unit:         p.Unit,
		}
		if recordID != 0 {
			item.Market = market
			item.ScannedFrom = strconv.FormatUint(uint64(recordID), 10)
		}
		if err := db.Create(&item).Error; err != nil {
			s.log.WithError(err).Warn("cart insert failed")
			return
		}
		// Share the observation so other shoppers can compare prices.
		gp := models.GlobalPrice{
			ProductName: p.Name,
			Price:       p.MainPrice,
			PriceKind:   mainKind(p),
			UserID:      userID,
		}
		gp.Market = market
		gp.Latitude = lat
		gp.Longitude = lng
		if err := db.Create(&gp).Error; err != nil {
			s.log.WithError(err).Warn("price observation insert failed")
		}
	}

	s.mu.Lock()
	s.added++
	s.mu.Unlock()

	if recordID != 0 {
		if err := db.Model(&models.ScanRecord{}).Where("id = ?", recordID).Update("raw_text", p.RawText).Error; err != nil {
			s.log.WithError(err).Debug("scan record raw text update failed")
		}
	}
	s.log.WithFields(logrus.Fields{
		"name":  p.Name,
		"price": fmt.Sprintf("%.2f", float64(p.MainPrice)/100),
	}).Info("product persisted")
}

// tierAmounts maps the candidate list onto the cart's three price columns.
// The loose column gets the retail candidate when one exists, otherwise the
// confirmed main price.
func tierAmounts(p scanner.Product) (avulso, atacado, cartao int64) {
	avulso = p.MainPrice
	for _, cand := range p.Prices {
		switch cand.Kind {
		case scanner.KindVarejo:
			avulso = cand.Amount
		case scanner.KindAtacado:
			atacado = cand.Amount
		case scanner.KindCredito:
			cartao = cand.Amount
		}
	}
	return avulso, atacado, cartao
}

// mainKind returns the kind of the candidate matching the confirmed price.
func mainKind(p scanner.Product) string {
	for _, cand := range p.Prices {
		if cand.Amount == p.MainPrice {
			return string(cand.Kind)
		}
	}
	return string(scanner.KindOutro)
}
