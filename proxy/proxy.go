package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bagaking/youcom-proxy/config"
	"github.com/bagaking/youcom-proxy/openai"
	pluginPKG "github.com/bagaking/youcom-proxy/plugin"
	"github.com/bagaking/youcom-proxy/telemetry"
	"github.com/bagaking/youcom-proxy/upstream"
)

// RequestIDHeader 请求 ID header
const RequestIDHeader = "X-Request-ID"

// Proxy OpenAI 协议到上游 API 的翻译代理
type Proxy struct {
	config     *config.Config
	client     *upstream.Client
	classifier Classifier
	builder    CompletionBuilder
	plugins    []pluginPKG.Plugin
	logger     Logger
	metrics    *telemetry.Metrics
	tracer     trace.Tracer
	started    time.Time
	mu         sync.RWMutex
}

// 创建新的代理实例
func NewProxy(cfg *config.Config, opts ...Option) *Proxy {
	o := options{
		logger: telemetry.NewDiscardLogger(),
		tracer: noopTracer(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	transport := o.transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
			TLSHandshakeTimeout: 10 * time.Second,
		}
	}

	client := upstream.New(cfg.Upstream,
		upstream.WithTransport(&LoggingTransport{Transport: transport, Logger: o.logger}),
		upstream.WithTracer(o.tracer),
	)

	return &Proxy{
		config: cfg,
		client: client,
		classifier: Classifier{
			Name:         cfg.Upstream.Name,
			AuthOverride: cfg.Errors.AuthOverride,
		},
		builder: CompletionBuilder{
			IDPrefix:     cfg.Completion.IDPrefix,
			DefaultModel: cfg.Completion.DefaultModel,
		},
		plugins: make([]pluginPKG.Plugin, 0),
		logger:  o.logger,
		metrics: o.metrics,
		tracer:  o.tracer,
		started: time.Now(),
	}
}

// RegisterPlugin 注册插件
func (p *Proxy) RegisterPlugin(plugin pluginPKG.Plugin) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plugins = append(p.plugins, plugin)
}

// corsMiddleware 统一处理 CORS，预检请求直接返回 200
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}

// requestIDMiddleware 沿用客户端的 X-Request-ID，否则生成一个
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// Engine 构建 gin 路由
func (p *Proxy) Engine() *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	// 使用自定义的 recovery 中间件
	r.Use(p.customRecovery())
	r.Use(requestIDMiddleware())
	r.Use(corsMiddleware())
	if p.metrics != nil {
		r.Use(p.metrics.Middleware())
	}

	for _, path := range p.config.Server.ProxyPaths {
		r.POST(path, p.handleCompletion)
		r.OPTIONS(path, func(c *gin.Context) { c.Status(http.StatusOK) })
	}
	r.GET("/", p.handleIndex)
	r.GET("/health", handleHealth)
	r.GET("/v1/models", p.handleModelsRequest)
	if p.metrics != nil && p.config.Metrics.Enabled {
		r.GET(p.config.Metrics.Path, gin.WrapH(p.metrics.Handler()))
	}

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, openai.ErrorResponse{Error: "Method Not Allowed"})
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, openai.ErrorResponse{Error: "Not Found"})
	})

	return r
}

// Start 启动代理服务，ctx 取消后优雅退出
func (p *Proxy) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         p.config.Server.ListenAddr(),
		Handler:      p.Engine(),
		ReadTimeout:  p.config.Server.ReadTimeout,
		WriteTimeout: p.config.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		p.logger.Info("starting proxy server",
			"addr", srv.Addr,
			"paths", p.config.Server.ProxyPaths,
			"upstream", p.config.Upstream.URL,
		)
		if p.config.Upstream.APIKey == "" {
			p.logger.Warn("upstream API key is not set, completion requests will fail with 500")
		}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	p.logger.Info("shutting down proxy server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), p.config.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// 自定义 recovery 中间件
func (p *Proxy) customRecovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					p.logger.Info("client aborted request")
					return
				}

				stack := debug.Stack()
				p.logger.Error(fmt.Sprintf("panic recovered: %v", err), "stack", string(stack))
				c.AbortWithStatusJSON(http.StatusInternalServerError, openai.ErrorResponse{Error: "Internal server error"})
			}
		}()
		c.Next()
	}
}

func (p *Proxy) handleCompletion(c *gin.Context) {
	ctx, span := p.tracer.Start(c.Request.Context(), "proxy.chat_completion",
		trace.WithAttributes(attribute.String("request_id", c.GetString("request_id"))))
	defer span.End()

	// 1. 检查上游 API key，先于请求体解析
	if p.config.Upstream.APIKey == "" {
		p.logger.Error("upstream API key not configured")
		p.writeError(c, p.classifier.NotConfigured())
		return
	}

	// 2. 读取并解析请求体
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		p.logger.Error("failed to read request body", "error", err)
		p.writeError(c, &ProxyError{Status: http.StatusBadRequest, Message: err.Error()})
		return
	}
	p.logger.Debug("incoming request", "path", c.Request.URL.Path, "body", clip(body))

	req, err := DecodeChatRequest(body)
	if err != nil {
		p.writeError(c, p.classifier.Classify(err))
		return
	}

	// 3. 归一化为上游 prompt
	prompt, err := NormalizePrompt(req)
	if err != nil {
		p.writeError(c, p.classifier.Classify(err))
		return
	}

	// 4. 执行请求前的插件
	if err := p.beforeRequest(req); err != nil {
		p.logger.Error("plugin error", "error", err)
		p.writeError(c, &ProxyError{Status: http.StatusInternalServerError, Message: err.Error()})
		return
	}

	// 5. 获取补全文本
	completion, perr := p.complete(ctx, req, prompt)
	if perr != nil {
		span.SetAttributes(attribute.Int("http.status_code", perr.Status))
		p.writeError(c, perr)
		return
	}

	resp := p.builder.Wrap(prompt, completion, req.Model)

	// 6. 执行响应后的插件
	if err := p.afterResponse(req, resp); err != nil {
		p.logger.Error("plugin error", "error", err)
		p.writeError(c, &ProxyError{Status: http.StatusInternalServerError, Message: err.Error()})
		return
	}

	p.logger.Info("completion sent",
		"id", resp.ID,
		"model", resp.Model,
		"total_tokens", resp.Usage.TotalTokens,
	)
	c.JSON(http.StatusOK, resp)
}

// complete 先尝试插件直接应答，否则调用上游并提取补全文本
func (p *Proxy) complete(ctx context.Context, req *openai.ChatRequest, prompt string) (string, *ProxyError) {
	if completion, ok := p.shortcut(req); ok {
		p.metrics.ObserveUpstream(telemetry.OutcomeMock, 0)
		return completion, nil
	}

	start := time.Now()
	resp, err := p.client.Send(ctx, prompt)
	if err != nil {
		p.metrics.ObserveUpstream(outcomeOf(err), time.Since(start))
		perr := p.classifier.Classify(err)
		p.logger.Error("upstream call failed", "status", perr.Status, "error", err)
		return "", perr
	}
	p.logger.Debug("upstream response body", "body", clip(resp.Body))

	completion := ExtractCompletion(resp.Body, p.config.Completion.ProbeFields)
	if completion == "" && p.config.Completion.FallbackRawBody {
		completion = rawBodyCompletion(resp.Body)
	}
	if completion == "" {
		p.metrics.ObserveUpstream(telemetry.OutcomeNoCompletion, resp.Duration)
		p.logger.Error("no completion in upstream response", "body", clip(resp.Body))
		return "", p.classifier.NoCompletion(resp.Body)
	}

	p.metrics.ObserveUpstream(telemetry.OutcomeSuccess, resp.Duration)
	return completion, nil
}

func (p *Proxy) beforeRequest(req *openai.ChatRequest) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, plugin := range p.plugins {
		if err := plugin.BeforeRequest(req); err != nil {
			return err
		}
	}
	return nil
}

func (p *Proxy) shortcut(req *openai.ChatRequest) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, plugin := range p.plugins {
		if s, ok := plugin.(pluginPKG.Shortcut); ok {
			if completion, hit := s.Shortcut(req); hit {
				return completion, true
			}
		}
	}
	return "", false
}

func (p *Proxy) afterResponse(req *openai.ChatRequest, resp *openai.ChatCompletion) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, plugin := range p.plugins {
		if err := plugin.AfterResponse(req, resp); err != nil {
			return err
		}
	}
	return nil
}

func (p *Proxy) writeError(c *gin.Context, e *ProxyError) {
	c.JSON(e.Status, e.Body(p.config.Errors.IncludeDebug))
}

func outcomeOf(err error) string {
	var (
		httpErr    *upstream.HTTPError
		timeoutErr *upstream.TimeoutError
	)
	switch {
	case errors.As(err, &httpErr):
		return telemetry.OutcomeHTTPError
	case errors.As(err, &timeoutErr):
		return telemetry.OutcomeTimeout
	default:
		return telemetry.OutcomeNetworkError
	}
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Server is running"})
}

func (p *Proxy) handleIndex(c *gin.Context) {
	paths := append([]string(nil), p.config.Server.ProxyPaths...)
	sort.Strings(paths)
	c.JSON(http.StatusOK, gin.H{
		"message": p.config.Upstream.Name + " Proxy Server",
		"endpoints": gin.H{
			"proxy":  "POST " + strings.Join(paths, ", "),
			"health": "GET /health",
			"models": "GET /v1/models",
		},
	})
}

// 处理 models 请求
func (p *Proxy) handleModelsRequest(c *gin.Context) {
	models := make([]openai.ModelInfo, 0, len(p.config.Models))
	for _, m := range p.config.Models {
		ownedBy := m.OwnedBy
		if ownedBy == "" {
			ownedBy = openai.DefaultOwnedBy
		}
		models = append(models, openai.ModelInfo{
			ID:      m.ID,
			Object:  openai.ObjectModel,
			Created: p.started.Unix(),
			OwnedBy: ownedBy,
		})
	}

	c.JSON(http.StatusOK, openai.ModelsResponse{
		Object: openai.ObjectList,
		Data:   models,
	})
}
