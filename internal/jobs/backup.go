package jobs

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"points-ledger/internal/config"
	"points-ledger/internal/logging"
)

// BackupRunner periodically dumps the database with pg_dump. Dumps run on
// their own connection and take no locks that block reward issuance.
type BackupRunner struct {
	cfg      *config.Config
	interval time.Duration
	stopChan chan struct{}
}

// NewBackupRunner creates a new backup job
func NewBackupRunner(cfg *config.Config, interval time.Duration) *BackupRunner {
	return &BackupRunner{
		cfg:      cfg,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the backup loop
func (br *BackupRunner) Start() {
	logging.L().Info("starting backup job", zap.Duration("interval", br.interval))

	ticker := time.NewTicker(br.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			br.backup()
		case <-br.stopChan:
			logging.L().Info("stopping backup job")
			return
		}
	}
}

// Stop stops the backup loop
func (br *BackupRunner) Stop() {
	close(br.stopChan)
}

func (br *BackupRunner) backup() {
	if err := os.MkdirAll(br.cfg.App.BackupDir, 0o755); err != nil {
		logging.L().Error("backup directory unavailable", zap.Error(err))
		return
	}

	filename := filepath.Join(br.cfg.App.BackupDir,
		fmt.Sprintf("points_ledger_%s.sql", time.Now().UTC().Format("20060102_150405")))

	cmd := exec.Command("pg_dump",
		"--host", br.cfg.Database.Host,
		"--port", br.cfg.Database.Port,
		"--username", br.cfg.Database.User,
		"--dbname", br.cfg.Database.DBName,
		"--file", filename,
	)
	cmd.Env = append(os.Environ(), "PGPASSWORD="+br.cfg.Database.Password)

	if out, err := cmd.CombinedOutput(); err != nil {
		logging.L().Error("backup failed",
			zap.Error(err),
			zap.ByteString("output", out),
		)
		return
	}
	logging.L().Info("backup written", zap.String("file", filename))
}
