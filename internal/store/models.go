package store

import (
	"encoding/json"
	"time"
)

// SkillCategories is the fixed set of skill groupings the frontend renders.
var SkillCategories = []string{
	"Programming Languages",
	"Frameworks & Libraries",
	"Databases & Tools",
}

type Skill struct {
	ID                  string
	Name                string
	Category            string
	DisplayOrder        int
	HoverColorPrimary   string
	HoverColorSecondary string
	LogoURL             string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type Timeline struct {
	ID           string
	Header       string
	Subheader    string
	Date         string
	Description  string
	DisplayOrder int
	LogoURL      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Project struct {
	ID           string
	Name         string
	CategoryID   string
	DisplayOrder int
	Difficulty   int
	Date         string
	GithubURL    string
	DemoURL      string
	Skills       []string
	Enabled      bool
	ImageURL     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type ProjectCategory struct {
	ID           string
	Name         string
	Description  string
	DisplayOrder int
	Enabled      bool
	ImageURL     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type CategoryWithProjects struct {
	ProjectCategory
	Projects []Project
}

// Profile is the single-row profile document.
type Profile struct {
	ImageURL     string
	ImageEnabled bool
	Data         json.RawMessage
	UpdatedAt    time.Time
}

// ProfileStats caches third-party coding-profile statistics as fetched.
type ProfileStats struct {
	LeetCode    json.RawMessage
	Codeforces  json.RawMessage
	GitHub      json.RawMessage
	LastUpdated time.Time
}

type Admin struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PasswordOTP is a pending password-reset code.
type PasswordOTP struct {
	Email     string
	Code      string
	ExpiresAt time.Time
}

// CommitInfo describes one revision of the about-me document.
type CommitInfo struct {
	Hash      string
	Message   string
	Author    string
	CreatedAt time.Time
}
