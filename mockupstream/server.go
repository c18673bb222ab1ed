// Package mockupstream 一个确定性的假上游，用于本地开发和端到端测试。
//
// 按 prompt 内容决定行为：
//
//	[status:NNN]  返回 NNN 和 {"error": "..."}
//	[slow]        等待 Delay 后再应答
//	[empty]       200 但不包含任何补全字段
//	其他          200 {"answer": "Echo: <prompt>"}
package mockupstream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

// EchoPrefix 正常应答的前缀
const EchoPrefix = "Echo: "

var statusDirective = regexp.MustCompile(`\[status:(\d{3})\]`)

// Server 假上游配置
type Server struct {
	APIKey    string        // 非空时校验 X-API-Key
	BodyField string        // 读取 prompt 的字段，默认 "query"
	Path      string        // 默认 "/smart/agent"
	Delay     time.Duration // [slow] 的等待时间，默认 5s
	Logger    *slog.Logger
}

func (s *Server) bodyField() string {
	if s.BodyField == "" {
		return "query"
	}
	return s.BodyField
}

func (s *Server) path() string {
	if s.Path == "" {
		return "/smart/agent"
	}
	return s.Path
}

func (s *Server) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s.Logger
}

// Handler 返回 gin 路由
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.POST(s.path(), s.handleQuery)
	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok\n") })
	return r
}

func (s *Server) handleQuery(c *gin.Context) {
	if s.APIKey != "" && c.GetHeader("X-API-Key") != s.APIKey {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil || !gjson.ValidBytes(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	prompt := gjson.GetBytes(body, s.bodyField()).String()
	s.logger().Info("mock upstream request", "field", s.bodyField(), "prompt_len", len(prompt))

	if m := statusDirective.FindStringSubmatch(prompt); m != nil {
		status, _ := strconv.Atoi(m[1])
		c.JSON(status, gin.H{"error": "mock status " + m[1]})
		return
	}

	if strings.Contains(prompt, "[slow]") {
		delay := s.Delay
		if delay <= 0 {
			delay = 5 * time.Second
		}
		select {
		case <-time.After(delay):
		case <-c.Request.Context().Done():
			return
		}
	}

	if strings.Contains(prompt, "[empty]") {
		c.JSON(http.StatusOK, gin.H{"status": "done"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"answer": EchoPrefix + prompt})
}

// ListenAndServe 启动服务，ctx 取消后优雅退出
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		s.logger().Info("mock upstream starting", "addr", addr, "path", s.path())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger().Info("mock upstream shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
