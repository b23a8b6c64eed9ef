package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iulianpascalau/devstats-stacks/services/stacks/common"
	"github.com/iulianpascalau/devstats-stacks/services/stacks/devstats"
	"github.com/iulianpascalau/devstats-stacks/services/stacks/registry"
	"github.com/multiversx/mx-chain-core-go/core/check"
	logger "github.com/multiversx/mx-chain-logger-go"
)

var log = logger.GetOrCreate("api")

type server struct {
	router         *gin.Engine
	httpServer     *http.Server
	components     ComponentsProvider
	stacks         StacksHandler
	aggregator     MetricsAggregator
	listenAddr     string
	staticDir      string
	generalHandler func(http.Handler) http.Handler
	wg             sync.WaitGroup
}

// ArgsWebServer defines the web server arguments
type ArgsWebServer struct {
	ListenAddress  string
	StaticDir      string
	Components     ComponentsProvider
	Stacks         StacksHandler
	Aggregator     MetricsAggregator
	GeneralHandler func(http.Handler) http.Handler
}

type stackRequest struct {
	Name       *string   `json:"name"`
	Components *[]string `json:"components"`
}

type metricsRequest struct {
	Periods   []string `json:"periods"`
	Companies []string `json:"companies"`
}

type stackResponse struct {
	Short      string   `json:"short"`
	Name       string   `json:"name"`
	Components []string `json:"components"`
	Data       bool     `json:"data"`
}

type stackMetricsResponse struct {
	Short      string               `json:"short"`
	Name       string               `json:"name"`
	Components []string             `json:"components"`
	Data       common.TabularResult `json:"data"`
}

var updatingResponse = gin.H{"updating": true}

// NewServer initializes the Gin engine and mounts all routes
func NewServer(args ArgsWebServer) (*server, error) {
	if check.IfNil(args.Components) {
		return nil, errors.New("nil components provider")
	}
	if check.IfNil(args.Stacks) {
		return nil, errors.New("nil stacks handler")
	}
	if check.IfNil(args.Aggregator) {
		return nil, errors.New("nil metrics aggregator")
	}
	if args.GeneralHandler == nil {
		return nil, errors.New("nil http handler")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &server{
		router:         router,
		components:     args.Components,
		stacks:         args.Stacks,
		aggregator:     args.Aggregator,
		listenAddr:     args.ListenAddress,
		staticDir:      args.StaticDir,
		generalHandler: args.GeneralHandler,
	}

	s.setupRoutes()
	return s, nil
}

func (s *server) setupRoutes() {
	s.router.GET("/components", s.handleGetComponents)
	s.router.GET("/companies", s.handleGetCompanies)

	s.router.GET("/stacks/components", s.handleGetStacks)
	s.router.POST("/stacks/components", s.handleCreateStack)
	s.router.PUT("/stacks/components/:name", s.handleUpdateStack)
	s.router.DELETE("/stacks/components/:name", s.handleDeleteStack)

	s.router.GET("/:stack/details", s.handleStackDetails)
	s.router.POST("/:stack/:metrics", s.handleStackMetrics)

	if s.staticDir != "" {
		log.Info("serving static files", "dir", s.staticDir)
		s.router.Static("/public", s.staticDir)
		s.router.StaticFile("/", path.Join(s.staticDir, "stackMenu.html"))
	}
}

// Start listens and serves connections
func (s *server) Start() {
	handler := s.generalHandler(s.router)

	s.httpServer = &http.Server{
		Addr:    s.listenAddr,
		Handler: handler,
	}

	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		log.Error("failed to listen", "error", err)
		return
	}
	s.listenAddr = ln.Addr().String()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		log.Info("starting HTTP server", "address", s.listenAddr)

		err := s.httpServer.Serve(ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "error", err)
		}
	}()
}

// Address returns the actual listen address
func (s *server) Address() string {
	return s.listenAddr
}

// Close gracefully stops the server
func (s *server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return err
		}
	}
	s.wg.Wait()
	return nil
}

// --- Handlers ---

func (s *server) handleGetComponents(c *gin.Context) {
	components, updating := s.components.GetComponents(c.Request.Context(), true)
	if updating {
		c.JSON(http.StatusOK, updatingResponse)
		return
	}

	c.JSON(http.StatusOK, components)
}

func (s *server) handleGetCompanies(c *gin.Context) {
	names, err := s.aggregator.Companies(c.Request.Context(), c.Query("component"))
	if err != nil {
		c.JSON(sourceErrorStatus(err), gin.H{"message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, names)
}

func (s *server) handleGetStacks(c *gin.Context) {
	components, updating := s.components.GetComponents(c.Request.Context(), false)
	if updating {
		c.JSON(http.StatusOK, updatingResponse)
		return
	}

	byShort := make(map[string]common.Component, len(components))
	for _, comp := range components {
		byShort[comp.Short] = comp
	}

	stacks := s.stacks.List()
	resolved := make([]common.ResolvedStack, 0, len(stacks))
	for _, stack := range stacks {
		members := make([]common.Component, 0, len(stack.Components))
		for _, short := range stack.Components {
			comp, found := byShort[short]
			if found {
				members = append(members, comp)
			}
		}

		resolved = append(resolved, common.ResolvedStack{
			Short:      stack.Short,
			Name:       stack.Name,
			Components: members,
		})
	}

	c.JSON(http.StatusOK, resolved)
}

func (s *server) handleCreateStack(c *gin.Context) {
	var req stackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid payload"})
		return
	}

	if req.Name == nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": `Missing "name" parameter`})
		return
	}
	if req.Components == nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": `Missing "components" parameter`})
		return
	}

	stack, persisted := s.stacks.Create(c.Request.Context(), *req.Name, *req.Components)
	c.JSON(http.StatusOK, stackResponse{
		Short:      stack.Short,
		Name:       stack.Name,
		Components: stack.Components,
		Data:       persisted,
	})
}

func (s *server) handleUpdateStack(c *gin.Context) {
	short := c.Param("name")

	var req stackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid payload"})
		return
	}

	if req.Components == nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": `Missing "components" parameter`})
		return
	}

	stack, persisted, err := s.stacks.Update(c.Request.Context(), short, *req.Components)
	if errors.Is(err, registry.ErrStackNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": stackNotFoundMessage(short)})
		return
	}

	c.JSON(http.StatusOK, stackResponse{
		Short:      stack.Short,
		Name:       stack.Name,
		Components: stack.Components,
		Data:       persisted,
	})
}

func (s *server) handleDeleteStack(c *gin.Context) {
	short := c.Param("name")

	stack, err := s.stacks.Delete(c.Request.Context(), short)
	if errors.Is(err, registry.ErrStackNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": stackNotFoundMessage(short)})
		return
	}

	c.JSON(http.StatusOK, stack)
}

func (s *server) handleStackDetails(c *gin.Context) {
	short := c.Param("stack")

	stack, err := s.stacks.Get(short)
	if errors.Is(err, registry.ErrStackNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": stackNotFoundMessage(short)})
		return
	}

	c.JSON(http.StatusOK, stack)
}

func (s *server) handleStackMetrics(c *gin.Context) {
	short := c.Param("stack")
	metric := c.Param("metrics")

	var req metricsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid payload"})
		return
	}
	if len(req.Periods) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": `Missing "periods" parameter`})
		return
	}

	stack, err := s.stacks.Get(short)
	if errors.Is(err, registry.ErrStackNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"message": stackNotFoundMessage(short)})
		return
	}

	result, updating, err := s.aggregator.GetMetrics(c.Request.Context(), stack.Components, metric, req.Periods, req.Companies)
	if err != nil {
		c.JSON(sourceErrorStatus(err), gin.H{"message": err.Error()})
		return
	}
	if updating {
		c.JSON(http.StatusOK, updatingResponse)
		return
	}

	c.JSON(http.StatusOK, stackMetricsResponse{
		Short:      stack.Short,
		Name:       stack.Name,
		Components: stack.Components,
		Data:       result,
	})
}

func sourceErrorStatus(err error) int {
	if errors.Is(err, devstats.ErrSourceUnavailable) || errors.Is(err, devstats.ErrInvalidTableFormat) {
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}

func stackNotFoundMessage(short string) string {
	return fmt.Sprintf("Stack %q does not exist", short)
}
