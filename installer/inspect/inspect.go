package inspect

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kisun-bit/partman/disk/partman"
	"github.com/kisun-bit/partman/installer/delegate"
	"github.com/kisun-bit/partman/util/logger"
)

type snapshot struct {
	devices    partman.DeviceList
	operations string
	digest     uint64
	updated    time.Time
}

// Server 只读的调试服务, 展示可视设备列表与操作日志, 并提供pprof.
// 地址: http://ip:port/api/v1/{devices,device?path=,operations,pprof/}.
type Server struct {
	logger *zap.SugaredLogger
	engine *gin.Engine
	srv    *http.Server

	mu   sync.RWMutex
	snap snapshot
}

func New(port int, l *zap.SugaredLogger) *Server {
	if l == nil {
		l = logger.Named("inspect")
	}
	s := &Server{
		logger: l,
		snap:   snapshot{operations: "[]"},
	}

	gin.DisableConsoleColor()
	gin.SetMode(gin.ReleaseMode)
	gin.DefaultWriter = io.Discard

	r := gin.New()
	r.Use(gin.LoggerWithWriter(zap.NewStdLog(l.Desugar()).Writer()))
	r.Use(gin.Recovery())
	apiv1 := r.Group("/api/v1")
	apiv1.GET("/devices", s.getDevices)
	apiv1.GET("/device", s.getDevice)
	apiv1.GET("/operations", s.getOperations)
	pprof.RouteRegister(apiv1, "pprof")

	s.engine = r
	s.srv = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
	return s
}

// Attach 订阅 d 的可视列表刷新通知. 必须在 d 的属主协程中调用.
func (s *Server) Attach(d *delegate.Delegate) {
	d.OnDeviceRefreshed(func(devices partman.DeviceList) {
		// 回调运行在属主协程中, 此时读取操作日志是安全的.
		s.Update(devices, d.Operations())
	})
}

// Update 替换当前快照.
func (s *Server) Update(devices partman.DeviceList, ops []partman.Operation) {
	js, err := partman.MarshalOperations(ops)
	if err != nil {
		s.logger.Warnf("encode operations: %v", err)
		js = "[]"
	}
	snap := snapshot{
		devices:    devices.Clone(),
		operations: js,
		digest:     devices.Digest(),
		updated:    time.Now(),
	}
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

func (s *Server) current() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start 在后台启动服务.
func (s *Server) Start() {
	go func() {
		s.logger.Infof("inspect server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("inspect server serve ERR=%v", err)
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) getDevices(c *gin.Context) {
	snap := s.current()
	devices := snap.devices
	if devices == nil {
		devices = partman.DeviceList{}
	}
	c.JSON(http.StatusOK, gin.H{
		"digest":  fmt.Sprintf("%016x", snap.digest),
		"updated": snap.updated,
		"devices": devices,
	})
}

func (s *Server) getDevice(c *gin.Context) {
	path := c.Query("path")
	dev, ok := s.current().devices.Find(path)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("device %q not found", path)})
		return
	}
	c.JSON(http.StatusOK, dev)
}

func (s *Server) getOperations(c *gin.Context) {
	c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(s.current().operations))
}
