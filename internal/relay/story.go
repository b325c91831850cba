package relay

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/storydeck/storydeck/internal/config"
	"github.com/storydeck/storydeck/internal/ident"
	"github.com/storydeck/storydeck/internal/openai"
	"github.com/storydeck/storydeck/internal/quota"
	"github.com/storydeck/storydeck/internal/slides"
	"github.com/storydeck/storydeck/internal/usage"
)

// Denial and failure messages surfaced to callers.
const (
	msgMissingRaw        = "Missing raw content"
	msgModelNotAllowed   = "Model not allowed"
	msgMinuteLimit       = "Rate limit exceeded. Please try again later."
	msgDailyLimit        = "Daily free tier limit reached. Support the project to continue!"
	msgGlobalLimit       = "Service temporarily unavailable. Daily global limit reached. Please try again tomorrow."
	msgMissingCredential = "Server not configured: missing OPENAI_API_KEY"
	msgUpstreamExhausted = "Free tier exhausted. Try later or use your own API key."
	msgGenerateFailed    = "Failed to generate story"
)

var rateLimitHeaders = []string{
	"X-RateLimit-Limit-Minute",
	"X-RateLimit-Remaining-Minute",
	"X-RateLimit-Limit-Daily",
	"X-RateLimit-Remaining-Daily",
	"X-RateLimit-Limit-Global",
	"X-RateLimit-Remaining-Global",
}

// Generator produces a completion for a prepared request.
type Generator interface {
	Generate(ctx *gin.Context, req openai.GenerateRequest) (string, error)
}

type clientGenerator struct {
	client *openai.Client
}

// NewClientGenerator adapts an upstream client to the Generator interface.
func NewClientGenerator(client *openai.Client) Generator {
	return clientGenerator{client: client}
}

func (g clientGenerator) Generate(c *gin.Context, req openai.GenerateRequest) (string, error) {
	return g.client.Generate(c.Request.Context(), req)
}

// storyRequest is the request body for POST /api/story.
type storyRequest struct {
	Raw    string `json:"raw"`
	Tone   string `json:"tone"`
	Length string `json:"length"`
	Model  string `json:"model"`
}

// StoryHandler admits, relays and records story generation requests.
type StoryHandler struct {
	cfg       config.Config
	policy    *quota.Policy
	generator Generator
	recorder  *usage.Recorder
}

// NewStoryHandler wires the story endpoint dependencies.
func NewStoryHandler(cfg config.Config, policy *quota.Policy, generator Generator, recorder *usage.Recorder) *StoryHandler {
	return &StoryHandler{cfg: cfg, policy: policy, generator: generator, recorder: recorder}
}

// Handle serves POST /api/story. Validation runs before admission so a
// malformed request never burns quota; admission runs before the upstream
// call so an admitted request is counted even when generation fails.
func (h *StoryHandler) Handle(c *gin.Context) {
	var req storyRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingRaw})
		return
	}
	if strings.TrimSpace(req.Raw) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgMissingRaw})
		return
	}
	if maxBytes := h.cfg.OpenAI.MaxRawBytes; maxBytes > 0 && len(req.Raw) > maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"error": "Input too large (>" + strconv.Itoa(maxBytes) + " bytes)",
		})
		return
	}
	model := req.Model
	if model == "" {
		model = h.cfg.OpenAI.DefaultModelName()
	}
	if !h.cfg.OpenAI.ModelAllowed(model) {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgModelNotAllowed})
		return
	}

	identity := ident.FromRequest(c.Request)
	credential, errCredential := openai.ResolveCredential(c.Request, h.cfg.OpenAI.APIKey)

	metered := !(credential.BYOK && h.cfg.RateLimit.BYOKBypassesQuota)
	if metered {
		decision, errEvaluate := h.policy.Evaluate(c.Request.Context(), identity)
		if errEvaluate != nil {
			log.WithError(errEvaluate).Error("story: quota evaluation failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": msgGenerateFailed})
			return
		}
		if !decision.Allowed {
			log.WithFields(log.Fields{
				"identity": identity,
				"tier":     decision.Tier,
			}).Info("story: request denied by quota")
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": denialMessage(decision.Tier),
				"tier":  decision.Tier,
			})
			return
		}
		setRateLimitHeaders(c, decision)
	}

	if errCredential != nil {
		// Checked after admission so a misconfigured server still
		// meters traffic the same way a working one would.
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgMissingCredential})
		return
	}

	genReq := openai.GenerateRequest{
		Model:       model,
		System:      slides.SystemPrompt,
		Prompt:      slides.BuildGuidance(req.Raw, req.Tone, req.Length),
		MaxTokens:   h.cfg.OpenAI.MaxCompletionTokens,
		Temperature: 0.8,
		Credential:  credential,
	}
	out, errGenerate := h.generator.Generate(c, genReq)
	h.record(c, req, identity, model, credential.BYOK, len(out), errGenerate != nil)
	if errGenerate != nil {
		if errors.Is(errGenerate, openai.ErrUpstreamExhausted) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": msgUpstreamExhausted})
			return
		}
		log.WithError(errGenerate).WithField("identity", identity).Error("story: generation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": msgGenerateFailed})
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": out})
}

func (h *StoryHandler) record(c *gin.Context, req storyRequest, identity, model string, byok bool, completionChars int, failed bool) {
	if h.recorder == nil {
		return
	}
	params, _ := paramsJSON(req)
	h.recorder.Record(usage.Record{
		Identity:        identity,
		Model:           model,
		Tone:            req.Tone,
		Length:          req.Length,
		PromptBytes:     len(req.Raw),
		CompletionChars: completionChars,
		BYOK:            byok,
		Failed:          failed,
		Params:          params,
	})
}

func paramsJSON(req storyRequest) (datatypes.JSON, error) {
	raw, errMarshal := json.Marshal(map[string]string{
		"tone":   req.Tone,
		"length": req.Length,
	})
	return datatypes.JSON(raw), errMarshal
}

func denialMessage(tier quota.Tier) string {
	switch tier {
	case quota.TierGlobal:
		return msgGlobalLimit
	case quota.TierDaily:
		return msgDailyLimit
	default:
		return msgMinuteLimit
	}
}

func setRateLimitHeaders(c *gin.Context, decision quota.Decision) {
	if decision.Minute.Enabled() {
		c.Header("X-RateLimit-Limit-Minute", strconv.Itoa(decision.Minute.Limit))
		c.Header("X-RateLimit-Remaining-Minute", strconv.Itoa(decision.Minute.Remaining()))
	}
	if decision.Daily.Enabled() {
		c.Header("X-RateLimit-Limit-Daily", strconv.Itoa(decision.Daily.Limit))
		c.Header("X-RateLimit-Remaining-Daily", strconv.Itoa(decision.Daily.Remaining()))
	}
	if decision.Global.Enabled() {
		c.Header("X-RateLimit-Limit-Global", strconv.Itoa(decision.Global.Limit))
		c.Header("X-RateLimit-Remaining-Global", strconv.Itoa(decision.Global.Remaining()))
	}
}
