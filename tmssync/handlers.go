package tmssync

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/symphonia/tms_backend/config"
	"github.com/symphonia/tms_backend/middlewares"
	"github.com/symphonia/tms_backend/models"
	"github.com/symphonia/tms_backend/utils"
	"gorm.io/gorm"
)

func ListConnectionsHandler(o *Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		organizationId, err := resolveOrganizationID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		ctx := utils.SetOrganizationIdInContext(c.Request.Context(), organizationId)

		var conns []models.TmsConnection
		if err := config.GetDB().WithContext(ctx).
			Where("organization_id = ?", organizationId).
			Order("id").
			Find(&conns).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": conns})
	}
}

func CreateConnectionHandler(o *Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		organizationId, err := resolveOrganizationID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var input NewConnectionInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		ctx := utils.SetOrganizationIdInContext(c.Request.Context(), organizationId)
		conn, err := o.CreateConnection(ctx, &input)
		if err != nil {
			var validationErrs validator.ValidationErrors
			if errors.As(err, &validationErrs) {
				c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(validationErrs)})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, conn)
	}
}

func TestConnectionHandler(o *Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		organizationId, err := resolveOrganizationID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		id, err := connectionParam(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid connection id"})
			return
		}

		ctx := utils.SetOrganizationIdInContext(c.Request.Context(), organizationId)
		result, err := o.TestConnection(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func TriggerSyncHandler(o *Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		organizationId, err := resolveOrganizationID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		id, err := connectionParam(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid connection id"})
			return
		}

		ctx := utils.SetOrganizationIdInContext(c.Request.Context(), organizationId)
		run, err := o.ExecuteSync(ctx, id, SyncOptions{TriggeredBy: models.SyncTriggeredManual})
		if err != nil {
			if errors.Is(err, ErrConnectionNotActive) {
				c.JSON(http.StatusConflict, gin.H{"error": "connection is not active"})
				return
			}
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, mapRunToResponse(*run))
	}
}

func SyncRunsHandler(o *Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		organizationId, err := resolveOrganizationID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		limit := 20
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}
		var connectionID uint
		if v := strings.TrimSpace(c.Query("connection_id")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				connectionID = uint(n)
			}
		}

		ctx := utils.SetOrganizationIdInContext(c.Request.Context(), organizationId)
		runs, err := o.GetSyncRuns(ctx, connectionID, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		items := make([]SyncRunResponse, 0, len(runs))
		for _, run := range runs {
			items = append(items, mapRunToResponse(run))
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

func SyncRunDetailHandler(o *Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		organizationId, err := resolveOrganizationID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		ctx := utils.SetOrganizationIdInContext(c.Request.Context(), organizationId)
		detail, err := o.GetSyncRunDetail(ctx, uint(id))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if detail == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusOK, detail)
	}
}

func CountersHandler(o *Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		organizationId, err := resolveOrganizationID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var connectionID uint
		if v := strings.TrimSpace(c.Query("connection_id")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				connectionID = uint(n)
			}
		}
		if connectionID == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "connection_id is required"})
			return
		}

		ctx := utils.SetOrganizationIdInContext(c.Request.Context(), organizationId)
		resp, err := o.GetRealtimeCounters(ctx, connectionID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func OrdersHandler(o *Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		organizationId, err := resolveOrganizationID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		filters := OrderFilters{
			Status:    strings.TrimSpace(c.Query("status")),
			CarrierId: strings.TrimSpace(c.Query("carrier_id")),
			Tag:       strings.TrimSpace(c.Query("tag")),
		}
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filters.Limit = n
			}
		}
		if v := strings.TrimSpace(c.Query("offset")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				filters.Offset = n
			}
		}

		ctx := utils.SetOrganizationIdInContext(c.Request.Context(), organizationId)
		resp, err := o.GetOrders(ctx, organizationId, filters)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func CarriersHandler(o *Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		organizationId, err := resolveOrganizationID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		limit := 100
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}

		ctx := utils.SetOrganizationIdInContext(c.Request.Context(), organizationId)

		if externalID := strings.TrimSpace(c.Query("external_id")); externalID != "" {
			carrier, err := o.GetCarrierByExternalID(ctx, externalID)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			if carrier == nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.JSON(http.StatusOK, carrier)
			return
		}

		carriers, err := o.GetCarriers(ctx, organizationId, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": carriers})
	}
}

func CacheStatsHandler(o *Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := resolveOrganizationID(c); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.JSON(http.StatusOK, o.cache.Stats())
	}
}

// resolveOrganizationID derives the caller's organization from the JWT claims
// or the session, honoring an explicit organization_id override for admin
// users.
func resolveOrganizationID(c *gin.Context) (string, error) {
	override := strings.TrimSpace(c.Query("organization_id"))

	if claim := middlewares.CtxValue(c.Request.Context()); claim != nil {
		if override != "" {
			if claim.Role != models.UserRoleAdmin && claim.OrganizationId != override {
				return "", errors.New("unauthorized")
			}
			return override, nil
		}
		if strings.TrimSpace(claim.OrganizationId) == "" {
			return "", errors.New("organization_id is required")
		}
		return claim.OrganizationId, nil
	}

	username, ok := utils.GetUsernameFromContext(c.Request.Context())
	if !ok || strings.TrimSpace(username) == "" {
		return "", errors.New("unauthorized")
	}

	user, err := lookupUser(c, username)
	if err != nil {
		return "", err
	}

	if override != "" {
		if user.Role != models.UserRoleAdmin && user.OrganizationId != override {
			return "", errors.New("unauthorized")
		}
		return override, nil
	}

	organizationId := strings.TrimSpace(user.OrganizationId)
	if organizationId == "" {
		return "", errors.New("organization_id is required")
	}
	return organizationId, nil
}

func lookupUser(c *gin.Context, username string) (*models.User, error) {
	var user models.User
	exists, err := config.GetRedisObject("User:"+username, &user)
	if err != nil {
		return nil, err
	}
	if !exists {
		db := config.GetDB()
		if db == nil {
			return nil, errors.New("db is nil")
		}
		if err := db.WithContext(c.Request.Context()).
			Model(&models.User{}).
			Where("username = ?", username).
			Take(&user).Error; err != nil {
			return nil, errors.New("unauthorized")
		}
	}
	return &user, nil
}

func connectionParam(c *gin.Context) (uint, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, errors.New("invalid connection id")
	}
	return uint(id), nil
}
