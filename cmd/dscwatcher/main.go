// Command dscwatcher polls a GitHub repository for new commits touching a
// recipe list, and on every new commit recomputes the build schedule
// (dependency graph, groups, priorities) and logs the resulting plan. It
// does not build anything; it answers "what would the schedule look like
// now" as the source tree evolves.
//
// Grounded on cmd/autobuilder/autobuilder.go: the same GitHub polling via
// google/go-github and golang.org/x/oauth2, and the same atomic stamp-file
// persistence via github.com/google/renameio, trimmed to schedule
// recomputation instead of a full build pipeline.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/starlingx/dscbuild"
	"github.com/starlingx/dscbuild/internal/index"
	"github.com/starlingx/dscbuild/internal/orchestrate"
	"github.com/google/go-github/v27/github"
	"github.com/google/renameio"
	"golang.org/x/oauth2"
	"golang.org/x/xerrors"
)

var (
	repo        = flag.String("repo", "", "GitHub repository to poll, as https://github.com/<owner>/<repo> (required)")
	recipeList  = flag.String("recipes", "", "path, relative to the repository root, to the recipe list file (required)")
	circular    = flag.String("circular", "", "path, relative to the repository root, to the circular dependency declarations file")
	accessToken = flag.String("github_access_token", "", "oauth2 GitHub access token")
	stampPath   = flag.String("stamp_file", "", "path to persist the last-seen commit SHA and group count (required)")
	interval    = flag.Duration("interval", 15*time.Minute, "how frequently to poll for new commits")
	once        = flag.Bool("once", false, "do one iteration instead of polling forever")
)

// stamp records what dscwatcher last saw, persisted atomically between
// iterations.
type stamp struct {
	CommitSHA  string `json:"commit_sha"`
	GroupCount int    `json:"group_count"`
}

func readStamp(path string) (*stamp, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &stamp{}, nil
	}
	if err != nil {
		return nil, err
	}
	var s stamp
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, xerrors.Errorf("unmarshaling %q: %w", path, err)
	}
	return &s, nil
}

func writeStamp(path string, s *stamp) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return renameio.WriteFile(path, b, 0644)
}

// commitReader fetches recipe-related files as they existed at one commit
// of a GitHub repository, implementing loader.RecipeReader.
type commitReader struct {
	ctx    context.Context
	client *github.Client
	owner  string
	repo   string
	ref    string
}

func (r commitReader) Open(path string) (io.ReadCloser, error) {
	content, _, _, err := r.client.Repositories.GetContents(r.ctx, r.owner, r.repo, path, &github.RepositoryContentGetOptions{Ref: r.ref})
	if err != nil {
		return nil, err
	}
	if content == nil {
		return nil, xerrors.Errorf("%q is a directory, not a file", path)
	}
	s, err := content.GetContent()
	if err != nil {
		return nil, err
	}
	return io.NopCloser(strings.NewReader(s)), nil
}

func splitRepo(repo string) (owner, name string, err error) {
	parts := strings.Split(strings.TrimPrefix(repo, "https://github.com/"), "/")
	if len(parts) != 2 {
		return "", "", xerrors.Errorf("invalid -repo %q: want https://github.com/<owner>/<repo>", repo)
	}
	return parts[0], parts[1], nil
}

func pollOnce(ctx context.Context, client *github.Client, owner, repoName string) error {
	commits, _, err := client.Repositories.ListCommits(ctx, owner, repoName, &github.CommitsListOptions{
		Path:        *recipeList,
		ListOptions: github.ListOptions{PerPage: 1},
	})
	if err != nil {
		return err
	}
	if len(commits) == 0 {
		return xerrors.Errorf("repository %s/%s has no commits", owner, repoName)
	}
	latest := commits[0].GetSHA()

	st, err := readStamp(*stampPath)
	if err != nil {
		return err
	}
	if st.CommitSHA == latest {
		log.Printf("no new commit (still at %s)", latest)
		return nil
	}

	log.Printf("new commit %s, recomputing schedule", latest)
	reader := commitReader{ctx: ctx, client: client, owner: owner, repo: repoName, ref: latest}
	plan, err := orchestrate.Build(reader, *recipeList, *circular, index.MapIndex{})
	if err != nil {
		return xerrors.Errorf("recomputing schedule for commit %s: %w", latest, err)
	}
	for i, g := range plan.Groups {
		log.Printf("group %d: %s, %d recipe(s)", i, g.Kind, len(g.Members))
	}

	return writeStamp(*stampPath, &stamp{CommitSHA: latest, GroupCount: len(plan.Groups)})
}

func funcmain() error {
	flag.Parse()
	if *repo == "" || *recipeList == "" || *stampPath == "" {
		return xerrors.Errorf("-repo, -recipes and -stamp_file are required")
	}
	owner, repoName, err := splitRepo(*repo)
	if err != nil {
		return err
	}

	ctx, canc := dscbuild.InterruptibleContext()
	defer canc()

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: *accessToken})
	tc := oauth2.NewClient(ctx, ts)
	client := github.NewClient(tc)

	for {
		if err := pollOnce(ctx, client, owner, repoName); err != nil {
			log.Printf("poll: %v", err)
		}
		if *once {
			return nil
		}
		select {
		case <-time.After(*interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func main() {
	if err := funcmain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
