package services

import (
	"github.com/customeros/dmarcwatch/config"
	"github.com/customeros/dmarcwatch/interfaces"
	"github.com/customeros/dmarcwatch/internal/logger"
	"github.com/customeros/dmarcwatch/internal/repository"
	"github.com/customeros/dmarcwatch/services/ai"
	"github.com/customeros/dmarcwatch/services/alerts"
	"github.com/customeros/dmarcwatch/services/imap"
	"github.com/customeros/dmarcwatch/services/parser"
	"github.com/customeros/dmarcwatch/services/processor"
	"github.com/customeros/dmarcwatch/services/smtp"
	"github.com/customeros/dmarcwatch/services/storage"
)

type Services struct {
	MailSource       interfaces.MailSource
	ParserService    *parser.DMARCParserService
	AnalysisService  interfaces.AnalysisService
	AlertService     interfaces.AlertService
	MailSender       interfaces.MailSender
	ArchiveStorage   interfaces.StorageService
	ProcessorService *processor.ProcessorService
}

func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) *Services {
	services := &Services{
		MailSource:      imap.NewIMAPService(cfg.IMAPConfig, log),
		ParserService:   parser.NewDMARCParserService(log),
		AnalysisService: ai.NewAnthropicService(cfg.AIConfig, log),
		AlertService:    alerts.NewAlertService(cfg.AlertConfig, log, repos.AlertRepository),
		MailSender:      smtp.NewSMTPClient(cfg.SMTPConfig, log),
	}

	if cfg.ArchiveConfig.Enabled {
		services.ArchiveStorage = storage.NewR2StorageService(cfg.ArchiveConfig)
	}

	services.ProcessorService = processor.NewProcessorService(
		log,
		services.MailSource,
		services.ParserService,
		services.AnalysisService,
		services.AlertService,
		services.MailSender,
		services.ArchiveStorage,
		repos,
	)

	return services
}
