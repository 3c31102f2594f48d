package models

import "time"

// Election status constants
const (
	StatusDraft     = "draft"
	StatusActive    = "active"
	StatusClosed    = "closed"
	StatusPublished = "published"
)

// User role constants
const (
	RoleVoter = "voter"
	RoleAdmin = "admin"
)

// Audit event type constants
const (
	AuditLogin         = "LOGIN"
	AuditVote          = "VOTE"
	AuditAdminAction   = "ADMIN_ACTION"
	AuditSecurityEvent = "SECURITY_EVENT"
)

// Result snapshot status constants
const (
	ResultPreliminary = "preliminary"
	ResultFinal       = "final"
)

// Request types

type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	AccessCode string `json:"accessCode,omitempty"`
}

type LogoutRequest struct {
	SessionToken string `json:"sessionToken"`
	Email        string `json:"email"`
}

type StatusRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CastVoteRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	CandidateID  string `json:"candidateId"`
	AccessCode   string `json:"accessCode,omitempty"`
	SessionToken string `json:"sessionToken,omitempty"`
}

type CreateCandidateRequest struct {
	Name        string `json:"name"`
	Photo       string `json:"photo"`
	Description string `json:"description"`
	Party       string `json:"party"`
}

// ExtendedCandidateRequest carries the full candidate profile. Pointer fields
// distinguish "absent" from "set to empty" on update.
type ExtendedCandidateRequest struct {
	Name        *string `json:"name"`
	Photo       *string `json:"photo"`
	Description *string `json:"description"`
	Party       *string `json:"party"`
	Position    *string `json:"position"`
	Trajectory  *string `json:"trajectory"`
	Profile     *string `json:"profile"`
	Projects    *string `json:"projects"`
}

type CreateElectionRequest struct {
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	StartDate    time.Time         `json:"startDate"`
	EndDate      time.Time         `json:"endDate"`
	Status       string            `json:"status"`
	Settings     *ElectionSettings `json:"settings"`
	ConfirmReset bool              `json:"confirmReset"`
}

type UpdateElectionStatusRequest struct {
	Status string `json:"status"`
}

type PublishResultsRequest struct {
	PublishedBy string `json:"publishedBy"`
}

// VoterInput is one row of an admin provisioning request.
type VoterInput struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	DocumentID string `json:"documentId"`
	Department string `json:"department"`
	District   string `json:"district"`
	Phone      string `json:"phone"`
	IsEligible *bool  `json:"isEligible"`
}

type CreateVotersRequest struct {
	Voters []VoterInput `json:"voters"`
}

// Response types

type LoginResponse struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	HasVoted     bool      `json:"hasVoted"`
	SessionToken string    `json:"sessionToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type StatusResponse struct {
	HasVoted bool   `json:"hasVoted"`
	Role     string `json:"role"`
}

type CastVoteResponse struct {
	Success   bool      `json:"success"`
	VoteID    string    `json:"voteId"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// VoterCredentials are returned exactly once at provisioning time and are
// never persisted in cleartext.
type VoterCredentials struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	AccessCode string `json:"accessCode"`
	Name       string `json:"name,omitempty"`
	Row        int    `json:"row,omitempty"`
}

type VoterRowResult struct {
	Row     int    `json:"row,omitempty"`
	Email   string `json:"email"`
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

type CreateVotersResponse struct {
	Results     []VoterRowResult   `json:"results"`
	Credentials []VoterCredentials `json:"credentials"`
}

type BulkUploadSummary struct {
	Total      int `json:"total"`
	Created    int `json:"created"`
	Errors     int `json:"errors"`
	Duplicates int `json:"duplicates"`
}

type BulkUploadReport struct {
	Created    []VoterCredentials `json:"created"`
	Errors     []VoterRowResult   `json:"errors"`
	Duplicates []VoterRowResult   `json:"duplicates"`
}

type BulkUploadResponse struct {
	Success bool              `json:"success"`
	Summary BulkUploadSummary `json:"summary"`
	Results BulkUploadReport  `json:"results"`
}

type VotingProgress struct {
	EligibleVoters    int       `json:"eligibleVoters"`
	VotedUsers        int       `json:"votedUsers"`
	ParticipationRate float64   `json:"participationRate"`
	Remaining         int       `json:"remaining"`
	LastUpdated       time.Time `json:"lastUpdated"`
}

// Domain types

type User struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Role        string     `json:"role"`
	IsEligible  bool       `json:"isEligible"`
	HasVoted    bool       `json:"hasVoted"`
	VotedAt     *time.Time `json:"votedAt,omitempty"`
	Name        string     `json:"name,omitempty"`
	Department  string     `json:"department,omitempty"`
	DocumentID  string     `json:"documentId,omitempty"`
	District    string     `json:"district,omitempty"`
	Phone       string     `json:"phone,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`

	// Credential material. Never exposed in JSON.
	PasswordHash string `json:"-"`
	PasswordSalt string `json:"-"`
	AccessCode   string `json:"-"`
}

type Candidate struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Party       string     `json:"party"`
	Description string     `json:"description"`
	Photo       string     `json:"photo"`
	Position    string     `json:"position,omitempty"`
	Trajectory  string     `json:"trajectory,omitempty"`
	Profile     string     `json:"profile,omitempty"`
	Projects    string     `json:"projects,omitempty"`
	Votes       int        `json:"votes"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// Vote is an anonymized ballot. It intentionally carries no voter fields.
type Vote struct {
	ID          string    `json:"id"`
	CandidateID string    `json:"candidateId"`
	CastAt      time.Time `json:"timestamp"`
	VoteHash    string    `json:"voteHash"`
	IPHash      string    `json:"-"`
}

type Session struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	Token        string     `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastAccessAt time.Time  `json:"lastAccessAt"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	IP           string     `json:"-"`
	Active       bool       `json:"active"`
	EndedAt      *time.Time `json:"endedAt,omitempty"`
}

type ElectionSettings struct {
	RequireAccessCode         bool `json:"requireAccessCode"`
	AllowPublicResults        bool `json:"allowPublicResults"`
	AutoPublishResults        bool `json:"autoPublishResults"`
	ResultPublishDelayMinutes int  `json:"resultPublishDelayMinutes"`
}

type Election struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"`
	Description        string           `json:"description"`
	StartDate          time.Time        `json:"startDate"`
	EndDate            time.Time        `json:"endDate"`
	Status             string           `json:"status"`
	Settings           ElectionSettings `json:"settings"`
	ResultsPublishedAt *time.Time       `json:"resultsPublishedAt,omitempty"`
	CreatedAt          time.Time        `json:"createdAt"`
	CreatedBy          string           `json:"createdBy"`
	UpdatedAt          *time.Time       `json:"updatedAt,omitempty"`
}

type AuditLogEntry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      string         `json:"type"`
	Actor     string         `json:"actor"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata"`
	IP        string         `json:"ip"`
}

// Result types

// CandidateResult is one ranked row of a tally snapshot.
type CandidateResult struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Party      string  `json:"party"`
	Votes      int     `json:"votes"`
	Percentage float64 `json:"percentage"`
	Rank       int     `json:"rank"`
}

type ResultStatistics struct {
	TotalVotes          int     `json:"totalVotes"`
	TotalEligibleVoters int     `json:"totalEligibleVoters"`
	TotalVotedUsers     int     `json:"totalVotedUsers"`
	ParticipationRate   float64 `json:"participationRate"`
	Abstentions         int     `json:"abstentions"`
}

type ResultSnapshot struct {
	ID            string            `json:"id"`
	ElectionID    string            `json:"electionId"`
	ElectionName  string            `json:"electionName"`
	GeneratedAt   time.Time         `json:"generatedAt"`
	PublishedAt   *time.Time        `json:"publishedAt,omitempty"`
	PublishedBy   string            `json:"publishedBy,omitempty"`
	Status        string            `json:"status"`
	Statistics    ResultStatistics  `json:"statistics"`
	Candidates    []CandidateResult `json:"candidates"`
	IntegrityHash string            `json:"integrityHash"`
}

// Error response

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
