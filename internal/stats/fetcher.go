// Package stats fetches and caches coding-profile statistics from
// LeetCode, Codeforces, and GitHub.
package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"portfolio/api/internal/store"
)

const (
	defaultLeetCodeBase   = "https://leetcode-stats-api.herokuapp.com"
	defaultCodeforcesBase = "https://codeforces.com/api"
	defaultGitHubBase     = "https://api.github.com"
)

// Config names the profiles to track.
type Config struct {
	LeetCodeUser   string
	CodeforcesUser string
	GitHubUser     string
	GitHubToken    string
}

// StatsStore persists the fetched snapshot. Sources that failed stay
// nil so the store keeps their previous value.
type StatsStore interface {
	UpsertProfileStats(ctx context.Context, stats store.ProfileStats) error
}

// Service refreshes the stats cache.
type Service struct {
	config Config
	store  StatsStore
	client *http.Client

	leetCodeBase   string
	codeforcesBase string
	gitHubBase     string
}

func NewService(config Config, store StatsStore) *Service {
	return &Service{
		config:         config,
		store:          store,
		client:         &http.Client{Timeout: 10 * time.Second},
		leetCodeBase:   defaultLeetCodeBase,
		codeforcesBase: defaultCodeforcesBase,
		gitHubBase:     defaultGitHubBase,
	}
}

// LeetCodeStats summarizes solved-problem counts.
type LeetCodeStats struct {
	Username     string `json:"username"`
	TotalSolved  int    `json:"totalSolved"`
	EasySolved   int    `json:"easySolved"`
	MediumSolved int    `json:"mediumSolved"`
	HardSolved   int    `json:"hardSolved"`
}

// RatingPoint is one contest result in a Codeforces rating history.
type RatingPoint struct {
	ContestID   int    `json:"contestId"`
	ContestName string `json:"contestName"`
	Rating      int    `json:"rating"`
	Rank        int    `json:"rank"`
	Date        string `json:"date"`
}

// CodeforcesStats summarizes a Codeforces profile.
type CodeforcesStats struct {
	Username      string        `json:"username"`
	Rating        int           `json:"rating"`
	MaxRating     int           `json:"maxRating"`
	Rank          string        `json:"rank"`
	Profile       string        `json:"profile"`
	AvatarURL     string        `json:"avatar_url"`
	RatingHistory []RatingPoint `json:"ratingHistory"`
}

// RepoSummary is one public repository in a GitHub profile.
type RepoSummary struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Language string `json:"language"`
}

// GitHubStats summarizes a GitHub profile.
type GitHubStats struct {
	Username     string         `json:"username"`
	AvatarURL    string         `json:"avatar_url"`
	PublicRepos  []RepoSummary  `json:"public_repos"`
	TopLanguages map[string]int `json:"top_languages"`
	AuthUsed     bool           `json:"auth_used"`
}

// Refresh fetches all configured sources concurrently and upserts the
// cache. A source failing does not block the others; Refresh errors
// only when every configured source fails.
func (s *Service) Refresh(ctx context.Context) error {
	type result struct {
		source  string
		payload json.RawMessage
		err     error
	}

	var wg sync.WaitGroup
	results := make(chan result, 3)

	fetchInto := func(source string, fn func(context.Context) (interface{}, error)) {
		defer wg.Done()
		data, err := fn(ctx)
		if err != nil {
			results <- result{source: source, err: err}
			return
		}
		raw, err := json.Marshal(data)
		if err != nil {
			results <- result{source: source, err: err}
			return
		}
		results <- result{source: source, payload: raw}
	}

	configured := 0
	if s.config.LeetCodeUser != "" {
		configured++
		wg.Add(1)
		go fetchInto("leetcode", func(ctx context.Context) (interface{}, error) {
			return s.FetchLeetCode(ctx, s.config.LeetCodeUser)
		})
	}
	if s.config.CodeforcesUser != "" {
		configured++
		wg.Add(1)
		go fetchInto("codeforces", func(ctx context.Context) (interface{}, error) {
			return s.FetchCodeforces(ctx, s.config.CodeforcesUser)
		})
	}
	if s.config.GitHubUser != "" {
		configured++
		wg.Add(1)
		go fetchInto("github", func(ctx context.Context) (interface{}, error) {
			return s.FetchGitHub(ctx, s.config.GitHubUser)
		})
	}

	if configured == 0 {
		return errors.New("no stats profiles configured")
	}

	wg.Wait()
	close(results)

	record := store.ProfileStats{LastUpdated: time.Now().UTC()}
	var failures []error
	for r := range results {
		if r.err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", r.source, r.err))
			continue
		}
		switch r.source {
		case "leetcode":
			record.LeetCode = r.payload
		case "codeforces":
			record.Codeforces = r.payload
		case "github":
			record.GitHub = r.payload
		}
	}

	if len(failures) == configured {
		return fmt.Errorf("all stats sources failed: %v", errors.Join(failures...))
	}

	if err := s.store.UpsertProfileStats(ctx, record); err != nil {
		return fmt.Errorf("cache stats: %w", err)
	}
	return nil
}

// FetchLeetCode queries the public LeetCode stats API.
func (s *Service) FetchLeetCode(ctx context.Context, username string) (LeetCodeStats, error) {
	var payload struct {
		TotalSolved  int `json:"totalSolved"`
		EasySolved   int `json:"easySolved"`
		MediumSolved int `json:"mediumSolved"`
		HardSolved   int `json:"hardSolved"`
	}
	url := fmt.Sprintf("%s/%s", s.leetCodeBase, username)
	if err := s.getJSON(ctx, url, "", &payload); err != nil {
		return LeetCodeStats{}, err
	}

	return LeetCodeStats{
		Username:     username,
		TotalSolved:  payload.TotalSolved,
		EasySolved:   payload.EasySolved,
		MediumSolved: payload.MediumSolved,
		HardSolved:   payload.HardSolved,
	}, nil
}

// FetchCodeforces queries user.info plus user.rating and returns the
// profile with a date-sorted rating history.
func (s *Service) FetchCodeforces(ctx context.Context, handle string) (CodeforcesStats, error) {
	var info struct {
		Result []struct {
			Handle     string `json:"handle"`
			Rating     int    `json:"rating"`
			MaxRating  int    `json:"maxRating"`
			Rank       string `json:"rank"`
			TitlePhoto string `json:"titlePhoto"`
		} `json:"result"`
	}
	infoURL := fmt.Sprintf("%s/user.info?handles=%s", s.codeforcesBase, handle)
	if err := s.getJSON(ctx, infoURL, "", &info); err != nil {
		return CodeforcesStats{}, err
	}
	if len(info.Result) == 0 {
		return CodeforcesStats{}, fmt.Errorf("codeforces user %q not found", handle)
	}
	user := info.Result[0]

	var rating struct {
		Result []struct {
			ContestID               int    `json:"contestId"`
			ContestName             string `json:"contestName"`
			Rank                    int    `json:"rank"`
			RatingUpdateTimeSeconds int64  `json:"ratingUpdateTimeSeconds"`
			NewRating               int    `json:"newRating"`
		} `json:"result"`
	}
	ratingURL := fmt.Sprintf("%s/user.rating?handle=%s", s.codeforcesBase, handle)
	// Rating history is optional, a fresh account has none.
	_ = s.getJSON(ctx, ratingURL, "", &rating)

	history := make([]RatingPoint, 0, len(rating.Result))
	for _, r := range rating.Result {
		history = append(history, RatingPoint{
			ContestID:   r.ContestID,
			ContestName: r.ContestName,
			Rating:      r.NewRating,
			Rank:        r.Rank,
			Date:        time.Unix(r.RatingUpdateTimeSeconds, 0).UTC().Format("2006-01-02"),
		})
	}
	sort.Slice(history, func(i, j int) bool { return history[i].Date < history[j].Date })

	return CodeforcesStats{
		Username:      user.Handle,
		Rating:        user.Rating,
		MaxRating:     user.MaxRating,
		Rank:          user.Rank,
		Profile:       "https://codeforces.com/profile/" + handle,
		AvatarURL:     user.TitlePhoto,
		RatingHistory: history,
	}, nil
}

// FetchGitHub queries the GitHub REST API. With a token it also
// aggregates language bytes per repository; forks are skipped either way.
func (s *Service) FetchGitHub(ctx context.Context, username string) (GitHubStats, error) {
	var user struct {
		Login     string `json:"login"`
		AvatarURL string `json:"avatar_url"`
	}
	userURL := fmt.Sprintf("%s/users/%s", s.gitHubBase, username)
	if err := s.getJSON(ctx, userURL, s.config.GitHubToken, &user); err != nil {
		return GitHubStats{}, err
	}

	var repos []struct {
		Name         string `json:"name"`
		HTMLURL      string `json:"html_url"`
		Language     string `json:"language"`
		Fork         bool   `json:"fork"`
		LanguagesURL string `json:"languages_url"`
	}
	reposURL := fmt.Sprintf("%s/users/%s/repos?per_page=100", s.gitHubBase, username)
	if err := s.getJSON(ctx, reposURL, s.config.GitHubToken, &repos); err != nil {
		return GitHubStats{}, err
	}

	stats := GitHubStats{
		Username:     user.Login,
		AvatarURL:    user.AvatarURL,
		PublicRepos:  make([]RepoSummary, 0, len(repos)),
		TopLanguages: map[string]int{},
		AuthUsed:     s.config.GitHubToken != "",
	}

	for _, repo := range repos {
		if repo.Fork {
			continue
		}
		stats.PublicRepos = append(stats.PublicRepos, RepoSummary{
			Name:     repo.Name,
			URL:      repo.HTMLURL,
			Language: repo.Language,
		})

		if s.config.GitHubToken == "" {
			continue
		}
		var langs map[string]int
		if err := s.getJSON(ctx, repo.LanguagesURL, s.config.GitHubToken, &langs); err != nil {
			continue
		}
		for lang, bytes := range langs {
			stats.TopLanguages[lang] += bytes
		}
	}

	return stats, nil
}

func (s *Service) getJSON(ctx context.Context, url, token string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
