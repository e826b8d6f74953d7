// Command migrate imports a directory of markdown posts into the content
// repository as a single commit. It is the bulk path for moving an existing
// site into Vellum without staging each file through the editor.
package main

import (
	"context"
	"flag"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/vellumhq/vellum/internal/config"
	"github.com/vellumhq/vellum/internal/draft"
	"github.com/vellumhq/vellum/internal/gitremote"
	"github.com/vellumhq/vellum/internal/logger"
	"github.com/vellumhq/vellum/internal/model"
	"github.com/vellumhq/vellum/internal/publish"
	"github.com/vellumhq/vellum/internal/util"
)

func main() {
	dir := flag.String("path", "", "Directory containing .md files to import")
	branch := flag.String("branch", "", "Target branch (defaults to the configured branch)")
	message := flag.String("message", "Import posts", "Commit message")
	configPath := flag.String("config", "config.yaml", "Path to the configuration file")
	flag.Parse()

	log := logger.New(config.DefaultLoggingLevel, config.DefaultLoggingFormat)
	config.SetLogger(log)
	draft.SetLogger(log)
	gitremote.SetLogger(log)
	publish.SetLogger(log)

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found")
	}

	if *dir == "" {
		log.Fatal().Msg("--path is required")
	}

	if err := config.LoadConfig(*configPath); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	cfg := config.AppConfig

	if cfg.Remote.Owner == "" || cfg.Remote.Repo == "" {
		log.Fatal().Msg("remote.owner and remote.repo must be configured")
	}

	target := *branch
	if target == "" {
		target = cfg.Remote.DefaultBranch
	}

	ops, err := collectOps(log, *dir, cfg.Content.PostsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read posts")
	}
	if len(ops) == 0 {
		log.Fatal().Str("path", *dir).Msg("No markdown files found")
	}

	repo := model.RepoID(cfg.Remote.Owner + "/" + cfg.Remote.Repo)
	client := gitremote.NewGitHub(
		cfg.Remote.APIBase,
		repo,
		os.Getenv("GIT_REMOTE_TOKEN"),
		time.Duration(cfg.Remote.TimeoutSeconds)*time.Second,
	)

	publisher := publish.NewPublisher(client, target, cfg.Publish.BlobBatchSize)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	result, err := publisher.Publish(ctx, *message, ops)
	if err != nil {
		// A failed publish never moves the ref, so the branch is untouched.
		log.Fatal().Msgf(config.ErrPublishFailedFmt, err)
	}

	log.Info().
		Str("branch", result.Branch).
		Str("commit", result.Commit).
		Int("files", result.Files).
		Msg("Import complete")
}

// collectOps builds one write per markdown file in dir. Front matter is
// parsed only to report titles; files without it import unchanged.
func collectOps(log zerolog.Logger, dir, postsDir string) ([]draft.Operation, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var ops []draft.Operation
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), config.MarkdownExt) {
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, f.Name()))
		if err != nil {
			return nil, err
		}

		op, err := draft.NewWrite(path.Join(postsDir, f.Name()), content, draft.EncodingUTF8)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)

		title := strings.TrimSuffix(f.Name(), config.MarkdownExt)
		if fm, err := util.ParseFrontMatter(content); err == nil && fm.Title != "" {
			title = fm.Title
		}
		log.Info().Str("file", f.Name()).Str("title", title).Msg("Queued for import")
	}
	return ops, nil
}
