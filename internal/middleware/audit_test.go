package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sportlearn-api/internal/models"
)

type recordingAudit struct {
	logs []*models.AuditLog
}

func (r *recordingAudit) Create(_ context.Context, log *models.AuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	audit := &recordingAudit{}
	status := http.StatusOK

	router := gin.New()
	router.Use(withIdentity(&models.Identity{ID: "c1", Role: models.RoleCoach}))
	router.POST("/api/v1/content/:id", Audit(audit, nil, models.AuditActionContentGenerate, "content"), func(c *gin.Context) {
		c.Status(status)
	})

	doRequest(router, http.MethodPost, "/api/v1/content/drill-1", map[string]string{"User-Agent": "test-agent"})
	require.Len(t, audit.logs, 1)
	log := audit.logs[0]
	assert.Equal(t, models.AuditActionContentGenerate, log.Action)
	assert.Equal(t, "content", log.Resource)
	assert.Equal(t, "c1", *log.UserID)
	assert.Equal(t, "drill-1", *log.ResourceID)
	assert.Equal(t, "test-agent", log.UserAgent)

	var values map[string]interface{}
	require.NoError(t, json.Unmarshal(log.NewValues, &values))
	assert.Equal(t, "/api/v1/content/:id", values["path"])
	assert.Equal(t, float64(http.StatusOK), values["status"])

	status = http.StatusBadRequest
	doRequest(router, http.MethodPost, "/api/v1/content/drill-1", nil)
	assert.Len(t, audit.logs, 1)
}
