package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jorikfon/JollyKite-sub000/internal/filestore"
	"github.com/jorikfon/JollyKite-sub000/internal/notify"
)

type subscribeRequest struct {
	Endpoint string                    `json:"endpoint"`
	Keys     filestore.WebPushKeys     `json:"keys"`
	Locale   string                    `json:"locale"`
}

// PostNotificationsSubscribe registers (or re-registers, keys refreshed) a
// browser's Web Push subscription.
func (h *Handlers) PostNotificationsSubscribe(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required"})
		return
	}
	if err := h.Subs.Add(filestore.PushSubscription{
		Endpoint: req.Endpoint,
		Keys:     req.Keys,
		Locale:   req.Locale,
	}); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "subscribed"})
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// PostNotificationsUnsubscribe removes a Web Push subscription by endpoint.
func (h *Handlers) PostNotificationsUnsubscribe(c *gin.Context) {
	var req unsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required"})
		return
	}
	if err := h.Subs.RemoveByEndpoint(req.Endpoint); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unsubscribed"})
}

// GetNotificationsStats reports how many recipients are currently
// registered on each channel.
func (h *Handlers) GetNotificationsStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"web_subscriptions": len(h.Subs.All()),
		"device_tokens":     len(h.Tokens.All()),
	})
}

// PostNotificationsTest evaluates the stability predicate against the
// primary station's current samples and dispatches a notification if it
// holds — an admin tool for verifying the push pipeline end to end. The
// dispatch applies the normal rate cap: recipients already notified today
// are skipped and counted as capped.
func (h *Handlers) PostNotificationsTest(c *gin.Context) {
	ctx := c.Request.Context()
	n := h.Stability.SampleCount
	rows, err := h.Store.RecentMeasurements(ctx, h.PrimaryStationID, n)
	if err != nil {
		writeError(c, err)
		return
	}

	speeds := make([]float64, len(rows))
	directions := make([]float64, len(rows))
	gusts := make([]float64, 0, len(rows))
	for i, m := range rows {
		speeds[i] = m.WindSpeedKnots
		directions[i] = float64(m.WindDirectionDeg)
		if m.WindGustKnots != nil {
			gusts = append(gusts, *m.WindGustKnots)
		}
	}

	result := h.Notify.Evaluate(speeds, directions, gusts)
	if !result.Holds {
		c.JSON(http.StatusOK, gin.H{"holds": false, "reason": result.Reason})
		return
	}

	payload := notify.Payload{
		Locales: map[string]notify.LocaleStrings{
			"default": {Title: "Conditions look good", Body: "Wind has been steady and within range."},
		},
		SpeedKnots: speeds[0],
	}
	dispatch := h.Notify.Dispatch(ctx, payload, h.Location.Now())
	c.JSON(http.StatusOK, gin.H{"holds": true, "dispatch": dispatch})
}

type apnsRegisterRequest struct {
	Token  string `json:"token"`
	Locale string `json:"locale"`
}

// PostAPNSRegister registers a mobile device token.
func (h *Handlers) PostAPNSRegister(c *gin.Context) {
	var req apnsRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}
	if err := h.Tokens.Add(filestore.DeviceToken{Token: req.Token, Locale: req.Locale}); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "registered"})
}

type apnsUnregisterRequest struct {
	Token string `json:"token"`
}

// PostAPNSUnregister removes a mobile device token.
func (h *Handlers) PostAPNSUnregister(c *gin.Context) {
	var req apnsUnregisterRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}
	if err := h.Tokens.RemoveByToken(req.Token); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "unregistered"})
}
