package cron_config

type Config struct {
	// Heartbeat check, every minute
	CronScheduleHeartbeat string `env:"CRON_SCHEDULE_HEARTBEAT" envDefault:"0 * * * * *"`
	// DMARC mailbox processing, every 5 minutes
	CronScheduleDmarcProcessing string `env:"CRON_SCHEDULE_DMARC_PROCESSING" envDefault:"0 */5 * * * *"`
}
