// Package api serves the read-only status surface: registered providers,
// virtual tables, and running jobs.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"weir/internal/catalog"
	"weir/internal/job"
)

type Server struct {
	http *http.Server
}

type providerView struct {
	Name    string   `json:"name"`
	Brokers []string `json:"brokers"`
}

type tableView struct {
	Name            string `json:"name"`
	Kind            string `json:"kind"`
	Provider        string `json:"provider"`
	Topic           string `json:"topic"`
	Format          string `json:"format"`
	EventTimeColumn string `json:"event_time_column,omitempty"`
	WatermarkDelay  string `json:"watermark_delay,omitempty"`
}

func New(port int, cat *catalog.Catalog, runners []*job.Runner) *Server {
	return &Server{
		http: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(cat, runners),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func newRouter(cat *catalog.Catalog, runners []*job.Runner) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	v1 := r.Group("/api/v1")
	v1.GET("/providers", func(c *gin.Context) {
		out := []providerView{}
		for _, p := range cat.Providers() {
			out = append(out, providerView{Name: p.Name, Brokers: p.Config.Brokers})
		}
		c.JSON(http.StatusOK, out)
	})
	v1.GET("/tables", func(c *gin.Context) {
		out := []tableView{}
		for _, t := range cat.Tables() {
			tv := tableView{
				Name:            t.Name,
				Kind:            t.Kind,
				Provider:        t.Provider,
				Topic:           t.Topic,
				Format:          t.Format,
				EventTimeColumn: t.EventTimeColumn,
			}
			if t.WatermarkDelay > 0 {
				tv.WatermarkDelay = t.WatermarkDelay.String()
			}
			out = append(out, tv)
		}
		c.JSON(http.StatusOK, out)
	})
	v1.GET("/tables/:table", func(c *gin.Context) {
		t, err := cat.Table(c.Param("table"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, t)
	})
	v1.GET("/jobs", func(c *gin.Context) {
		out := []job.Status{}
		for _, rn := range runners {
			out = append(out, rn.Status())
		}
		c.JSON(http.StatusOK, out)
	})

	return r
}

func (s *Server) Serve() error {
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.http.Shutdown(ctx)
}
