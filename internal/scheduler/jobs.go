package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/aristath/kginvest/internal/committee"
	"github.com/aristath/kginvest/internal/database"
	"github.com/aristath/kginvest/internal/market"
	"github.com/aristath/kginvest/internal/metrics"
	"github.com/aristath/kginvest/internal/portfolio"
	"github.com/aristath/kginvest/internal/trading"
)

// WALCheckpointJob periodically truncates the WAL file.
type WALCheckpointJob struct {
	DB *database.DB
}

func (j *WALCheckpointJob) Name() string { return "wal_checkpoint" }

func (j *WALCheckpointJob) Run() error {
	return j.DB.WALCheckpoint("TRUNCATE")
}

// QueuedInsightFlushJob applies starred insights that were queued while
// the trading window was closed.
type QueuedInsightFlushJob struct {
	Insights     *committee.InsightRepo
	Snapshots    *market.SnapshotRepo
	Repo         *portfolio.Repository
	Executor     trading.TradeExecutor
	TradeAnytime bool
	Log          zerolog.Logger
}

func (j *QueuedInsightFlushJob) Name() string { return "queued_insight_flush" }

func (j *QueuedInsightFlushJob) Run() error {
	if !market.CanTradeNow(j.TradeAnytime, time.Now()) {
		return nil
	}

	queued, err := j.Insights.ListByStatus(j.Insights.DB(), "queued")
	if err != nil {
		return err
	}
	if len(queued) == 0 {
		return nil
	}

	snap, err := j.Snapshots.Latest(j.Snapshots.DB())
	if err != nil {
		return err
	}
	if snap == nil {
		return nil
	}

	for _, ins := range queued {
		decisions, err := ins.Decisions()
		if err != nil {
			j.Log.Error().Err(err).Int64("insight", ins.InsightID).Msg("skipping undecodable insight")
			continue
		}
		err = database.WithTransaction(j.Insights.DB(), func(tx *sql.Tx) error {
			res, err := j.Executor.Execute(tx, decisions, snap.Prices,
				fmt.Sprintf("queued insight %d flush", ins.InsightID), ins.InsightID)
			if err != nil {
				return err
			}
			for _, slice := range res.Executed {
				metrics.TradesExecuted.WithLabelValues(slice.Side).Inc()
			}
			if err := j.Insights.UpdateStatus(tx, ins.InsightID, "applied"); err != nil {
				return err
			}
			return j.Repo.LogEvent(tx, "trade", "queued_flush",
				fmt.Sprintf("id=%d executed=%d skipped=%d", ins.InsightID, len(res.Executed), len(res.Skipped)))
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// S3BackupJob uploads the checkpointed database file to S3.
type S3BackupJob struct {
	DB     *database.DB
	Client *s3.Client
	Bucket string
	Prefix string
	Log    zerolog.Logger
}

func (j *S3BackupJob) Name() string { return "s3_backup" }

func (j *S3BackupJob) Run() error {
	// Checkpoint first so the main file alone is a consistent copy.
	if err := j.DB.WALCheckpoint("TRUNCATE"); err != nil {
		return err
	}

	f, err := os.Open(j.DB.Path())
	if err != nil {
		return fmt.Errorf("failed to open database file: %w", err)
	}
	defer f.Close()

	key := path.Join(j.Prefix, fmt.Sprintf("kginvest-%s.db", time.Now().UTC().Format("20060102T150405Z")))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	uploader := manager.NewUploader(j.Client)
	if _, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(j.Bucket),
		Key:    aws.String(key),
		Body:   f,
	}); err != nil {
		return fmt.Errorf("failed to upload backup: %w", err)
	}
	j.Log.Info().Str("bucket", j.Bucket).Str("key", key).Msg("database backup uploaded")
	return nil
}
