package container

import (
	"github.com/tyura/websocket-clients/internal/application/port"
	"github.com/tyura/websocket-clients/internal/application/service"
)

type Container struct {
	repo port.Repository

	reportService *service.ReportService
}

func New(repo port.Repository) *Container {
	return &Container{
		repo: repo,
	}
}

func (c *Container) Repository() port.Repository {
	return c.repo
}

func (c *Container) ReportService() *service.ReportService {
	if c.reportService == nil {
		c.reportService = service.NewReportService(c.repo)
	}
	return c.reportService
}

func (c *Container) Close() error {
	return c.repo.Close()
}
