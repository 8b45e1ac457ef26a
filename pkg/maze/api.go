package maze

// Wire types of the contest HTTP API. Plans travel in their text form.

// SelectRequest asks the server to start a problem for a team.
type SelectRequest struct {
	ID          string `json:"id"`
	ProblemName string `json:"problemName"`
}

// SelectResponse confirms the selected problem.
type SelectResponse struct {
	ProblemName string `json:"problemName"`
}

// ExploreRequest submits a batch of plans.
type ExploreRequest struct {
	ID    string `json:"id"`
	Plans []Plan `json:"plans"`
}

// ExploreResponse carries one label sequence per plan and the team's total
// query count so far.
type ExploreResponse struct {
	Results    [][]Label `json:"results"`
	QueryCount int       `json:"queryCount"`
}

// GuessRequest submits a candidate map.
type GuessRequest struct {
	ID  string `json:"id"`
	Map Map    `json:"map"`
}

// GuessResponse reports whether the map was correct.
type GuessResponse struct {
	Correct bool `json:"correct"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
