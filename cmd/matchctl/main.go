package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/tutor-match-api/internal/dto"
	"github.com/noah-isme/tutor-match-api/internal/matching"
	"github.com/noah-isme/tutor-match-api/internal/models"
	"github.com/noah-isme/tutor-match-api/internal/repository"
	"github.com/noah-isme/tutor-match-api/internal/service"
	"github.com/noah-isme/tutor-match-api/pkg/cache"
	"github.com/noah-isme/tutor-match-api/pkg/config"
	"github.com/noah-isme/tutor-match-api/pkg/database"
	"github.com/noah-isme/tutor-match-api/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "matchctl",
		Short:         "Operator tooling for the tutor match service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRankCmd(), newAuditCmd(), newResetTermCmd(), newTokenCmd())
	return root
}

type env struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sqlx.DB
	cache  *repository.CacheRepository
}

func (e *env) close() {
	if e.db != nil {
		_ = e.db.Close()
	}
	_ = e.cache.Close()
	_ = e.logger.Sync()
}

// candidateCache lets offline maintenance drop rankings the API has cached.
func (e *env) candidateCache() *service.CacheService {
	return service.NewCacheService(e.cache, nil, e.cfg.Matching.CacheTTL, e.logger, e.cache.Enabled())
}

var openPostgres = database.NewPostgres

func loadEnv(withDB bool) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, logger: logr, cache: repository.NewCacheRepository(nil, logr)}
	if !withDB {
		return e, nil
	}
	if err := e.connect(); err != nil {
		e.close()
		return nil, err
	}
	return e, nil
}

func (e *env) connect() error {
	db, err := openPostgres(e.cfg.Database)
	if err != nil {
		return err
	}
	e.db = db
	if e.cfg.Matching.CacheEnabled {
		client, err := cache.NewRedis(e.cfg.Redis)
		if err != nil {
			e.logger.Warn("redis unavailable, cached rankings will expire on their own", zap.Error(err))
		} else {
			e.cache = repository.NewCacheRepository(client, e.logger)
		}
	}
	return nil
}

func newRankCmd() *cobra.Command {
	var file string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank tutors for a request described in a YAML fixture",
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var fixture dto.RankFixture
			if err := yaml.Unmarshal(raw, &fixture); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}
			return renderRanking(cmd.OutOrStdout(), fixture, asJSON)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "fixture with tutors, request and optional sessions")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func renderRanking(w io.Writer, fixture dto.RankFixture, asJSON bool) error {
	if err := fixture.Request.Availability.Validate(); err != nil {
		return fmt.Errorf("request availability: %w", err)
	}
	for _, tutor := range fixture.Tutors {
		if err := tutor.Availability.Validate(); err != nil {
			return fmt.Errorf("tutor %s availability: %w", tutor.ID, err)
		}
	}

	ranked := matching.Score(fixture.Tutors, fixture.Request, fixture.Sessions)
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(ranked)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tTUTOR\tPREFERRED\tSUBJECTS\tCAPACITY\tSCHEDULE")
	for i, r := range ranked {
		fmt.Fprintf(tw, "%d\t%s\t%t\t%d\t%d/%d\t%d\n",
			i+1, r.Tutor.ID, r.Preferred, r.SubjectOverlap,
			r.Tutor.ActiveTutees, r.Tutor.MaxTutees, r.ScheduleOverlap)
	}
	return tw.Flush()
}

func newAuditCmd() *cobra.Command {
	var repair bool

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Compare stored tutee counts with matched sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(true)
			if err != nil {
				return err
			}
			defer e.close()

			tutors := repository.NewTutorRepository(e.db)
			sessions := repository.NewSessionRepository(e.db)
			svc := service.NewAuditService(e.db, tutors, sessions, e.candidateCache(), nil, e.logger)
			report, err := svc.Run(context.Background(), repair)
			if err != nil {
				return err
			}
			return printAudit(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().BoolVar(&repair, "repair", false, "overwrite drifted counts with the recomputed value")
	return cmd
}

func printAudit(w io.Writer, report *models.LoadAuditReport) error {
	fmt.Fprintf(w, "checked %d tutors, %d discrepancies", report.TutorsChecked, len(report.Discrepancies))
	if report.Repaired {
		fmt.Fprint(w, " (repaired)")
	}
	fmt.Fprintln(w)
	if len(report.Discrepancies) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TUTOR\tSTORED\tEXPECTED")
	for _, d := range report.Discrepancies {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", d.TutorID, d.Stored, d.Expected)
	}
	return tw.Flush()
}

func newResetTermCmd() *cobra.Command {
	var closeIntake bool

	cmd := &cobra.Command{
		Use:   "reset-term",
		Short: "Delete TERM requests and recompute tutee counts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(true)
			if err != nil {
				return err
			}
			defer e.close()

			svc := service.NewTermService(
				e.db,
				repository.NewRequestRepository(e.db),
				repository.NewSessionRepository(e.db),
				repository.NewTutorRepository(e.db),
				e.candidateCache(),
				e.logger,
			)
			summary, err := svc.Reset(context.Background(), closeIntake)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d term requests, reset %d tutors, intake closed=%t\n",
				summary.RequestsDeleted, summary.TutorsReset, summary.IntakeClosed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&closeIntake, "close-intake", false, "also set every max tutee count to zero")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var userID, role, email, name string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a signed access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := loadEnv(false)
			if err != nil {
				return err
			}
			defer e.close()

			svc := service.NewTokenService(service.TokenConfig{
				Secret: e.cfg.JWT.Secret,
				Issuer: e.cfg.JWT.Issuer,
				Expiry: e.cfg.JWT.Expiry,
			})
			return mintToken(cmd.OutOrStdout(), svc, userID, email, name, role)
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id placed in the token")
	cmd.Flags().StringVar(&role, "role", string(models.RoleCoordinator), "ADMIN, COORDINATOR or TUTOR")
	cmd.Flags().StringVar(&email, "email", "", "optional email claim")
	cmd.Flags().StringVar(&name, "name", "", "optional full name claim")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func mintToken(w io.Writer, svc *service.TokenService, userID, email, name, role string) error {
	r := models.UserRole(strings.ToUpper(strings.TrimSpace(role)))
	switch r {
	case models.RoleAdmin, models.RoleCoordinator, models.RoleTutor:
	default:
		return fmt.Errorf("unknown role %q", role)
	}
	token, expires, err := svc.IssueToken(userID, email, name, r)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\nexpires %s\n", token, expires.Format("2006-01-02T15:04:05Z07:00"))
	return err
}
