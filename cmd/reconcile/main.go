package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/database"
	"github.com/stemsi/exstem-assessment/internal/logger"
	"github.com/stemsi/exstem-assessment/internal/repository"
	"github.com/stemsi/exstem-assessment/internal/service"
)

// reconcile auto-submits active sessions whose deadline has passed. Run it
// from cron when the server's in-process reconciler is disabled.
func main() {
	var (
		limit     int
		assumeYes bool
		dryRun    bool
		drain     bool
	)
	flag.IntVar(&limit, "limit", 200, "Maximum sessions to close per pass")
	flag.BoolVar(&assumeYes, "yes", false, "Skip the confirmation prompt")
	flag.BoolVar(&dryRun, "dry-run", false, "List expired sessions without submitting them")
	flag.BoolVar(&drain, "drain", false, "Keep running passes until no expired session is left")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat).With().Str("component", "reconcile").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	sessionRepo := repository.NewExamSessionRepository(pool)

	expired, err := sessionRepo.ListExpiredActive(ctx, time.Now(), limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list expired sessions")
	}
	if len(expired) == 0 {
		log.Info().Msg("No expired sessions")
		return
	}

	fmt.Printf("%d expired active session(s) found", len(expired))
	if len(expired) == limit {
		fmt.Print(" (page full, more may follow)")
	}
	fmt.Println()
	activityRepo := repository.NewActivityRepository(rdb)
	for _, s := range expired {
		lastSeen := "never"
		if t, err := activityRepo.LastActive(ctx, s.ID); err == nil && t != nil {
			lastSeen = t.Format(time.RFC3339)
		} else if s.LastActive != nil {
			lastSeen = s.LastActive.Format(time.RFC3339)
		}
		fmt.Printf("  %s  exam=%s  student=%d  started=%s  last_seen=%s\n",
			s.ID, s.ExamID, s.StudentID, s.StartedAt.Format(time.RFC3339), lastSeen)
	}

	if dryRun {
		return
	}
	if !confirm(assumeYes, "Auto-submit these sessions?") {
		log.Warn().Msg("Reconcile aborted")
		return
	}

	examService := service.NewExamService(
		repository.NewExamRepository(pool),
		repository.NewQuestionRepository(pool),
		repository.NewExamCache(rdb, cfg.ExamCacheTTL),
		log,
	)
	submissionService := service.NewSubmissionService(
		sessionRepo,
		examService,
		repository.NewSubmissionRepository(pool),
		activityRepo,
		log,
	)

	total := 0
	for {
		n, err := submissionService.ReconcileExpired(ctx, limit)
		total += n
		if err != nil {
			log.Fatal().Err(err).Int("submitted", total).Msg("Reconcile failed")
		}
		if !drain || n < limit {
			break
		}
	}

	log.Info().Int("submitted", total).Msg("Reconcile complete")
}

// confirm asks for y/N on an interactive terminal. Non-interactive runs must pass -yes.
func confirm(assumeYes bool, question string) bool {
	if assumeYes {
		return true
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false
	}
	fmt.Printf("%s [y/N]: ", question)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
