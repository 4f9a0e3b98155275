package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/reelmatch/reelmatch/internal/domain"
	"github.com/reelmatch/reelmatch/internal/recommend"
	"github.com/reelmatch/reelmatch/internal/repository"
)

type userCreateRequest struct {
	Email   *string `json:"email"`
	Age     *int    `json:"age"`
	Zipcode *string `json:"zipcode"`
}

type userResponse struct {
	ID      int64   `json:"id"`
	Email   *string `json:"email,omitempty"`
	Age     *int    `json:"age,omitempty"`
	Zipcode *string `json:"zipcode,omitempty"`
}

type userListResponse struct {
	Items []userResponse `json:"items"`
}

type userRatingResponse struct {
	MovieID int64     `json:"movieId"`
	Score   int       `json:"score"`
	RatedAt time.Time `json:"ratedAt"`
}

type userProfileResponse struct {
	userResponse
	Ratings []userRatingResponse `json:"ratings"`
}

type similarityResponse struct {
	UserID     int64   `json:"userId"`
	OtherID    int64   `json:"otherId"`
	Similarity float64 `json:"similarity"`
}

// predictionResponse reports either a predicted score or, when the rater
// has already rated the movie, their stored score.
type predictionResponse struct {
	MovieID int64   `json:"movieId"`
	RaterID int64   `json:"raterId"`
	Score   float64 `json:"score"`
	Source  string  `json:"source"`
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if val := strings.TrimSpace(r.URL.Query().Get("limit")); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid limit value")
			return
		}
		limit = parsed
	}

	users, err := s.repo.Users.List(r.Context(), limit)
	if err != nil {
		s.logger.Printf("list users error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list users")
		return
	}

	items := make([]userResponse, 0, len(users))
	for _, user := range users {
		items = append(items, toUserResponse(user))
	}
	s.respondJSON(w, http.StatusOK, userListResponse{Items: items})
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req userCreateRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		s.respondDecodeError(w, err)
		return
	}
	if req.Age != nil && (*req.Age <= 0 || *req.Age > 130) {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "age must be between 1 and 130")
		return
	}

	user, err := s.repo.Users.Create(r.Context(), repository.UserCreateParams{
		Email:   normalizeStringPtr(req.Email),
		Age:     req.Age,
		Zipcode: normalizeStringPtr(req.Zipcode),
	})
	if err != nil {
		s.logger.Printf("create user error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create user")
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/users/%d", user.ID))
	s.respondJSON(w, http.StatusCreated, toUserResponse(user))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r, "userID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	user, err := s.repo.Users.GetByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		s.logger.Printf("fetch user failed: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch user")
		return
	}

	ratings, err := s.repo.Ratings.ListByUser(r.Context(), userID)
	if err != nil {
		s.logger.Printf("list user ratings failed: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch user")
		return
	}

	profile := userProfileResponse{
		userResponse: toUserResponse(user),
		Ratings:      make([]userRatingResponse, 0, len(ratings)),
	}
	for _, rating := range ratings {
		profile.Ratings = append(profile.Ratings, userRatingResponse{
			MovieID: rating.MovieID,
			Score:   rating.Score,
			RatedAt: rating.RatedAt,
		})
	}
	s.respondJSON(w, http.StatusOK, profile)
}

func (s *Server) handleSimilarity(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r, "userID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	otherID, err := parseIDParam(r, "otherID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	for _, id := range []int64{userID, otherID} {
		if _, err := s.repo.Users.GetByID(r.Context(), id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
				return
			}
			s.logger.Printf("fetch user %d failed: %v", id, err)
			s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to compute similarity")
			return
		}
	}

	sim, err := s.recommender.Similarity(r.Context(), userID, otherID)
	if err != nil {
		s.logger.Printf("similarity error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to compute similarity")
		return
	}

	s.respondJSON(w, http.StatusOK, similarityResponse{
		UserID:     userID,
		OtherID:    otherID,
		Similarity: sim,
	})
}

func (s *Server) handleGetPrediction(w http.ResponseWriter, r *http.Request) {
	movieID, err := parseIDParam(r, "movieID")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	raterID, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("raterId")), 10, 64)
	if err != nil || raterID <= 0 {
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "raterId query parameter is required")
		return
	}

	if _, err := s.repo.Movies.GetByID(r.Context(), movieID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		s.logger.Printf("fetch movie for prediction failed: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to predict rating")
		return
	}
	if _, err := s.repo.Users.GetByID(r.Context(), raterID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "NOT_FOUND", "Resource not found")
			return
		}
		s.logger.Printf("fetch rater for prediction failed: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to predict rating")
		return
	}

	// An existing rating is the ground truth; no prediction needed.
	if rating, err := s.repo.Ratings.Get(r.Context(), raterID, movieID); err == nil {
		s.respondJSON(w, http.StatusOK, predictionResponse{
			MovieID: movieID,
			RaterID: raterID,
			Score:   float64(rating.Score),
			Source:  "rating",
		})
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		s.logger.Printf("fetch existing rating failed: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to predict rating")
		return
	}

	score, err := s.recommender.Predict(r.Context(), raterID, movieID)
	if err != nil {
		if errors.Is(err, recommend.ErrNoRaters) {
			s.respondError(w, http.StatusUnprocessableEntity, "NOT_ENOUGH_DATA", "Not enough ratings to predict a score")
			return
		}
		s.logger.Printf("predict rating error: %v", err)
		s.respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to predict rating")
		return
	}

	s.respondJSON(w, http.StatusOK, predictionResponse{
		MovieID: movieID,
		RaterID: raterID,
		Score:   roundToOneDecimal(s.clampScore(score)),
		Source:  "predicted",
	})
}

// clampScore pins a raw prediction to the configured rating scale.
// Confidence dampening can push raw predictions below the minimum or
// negative; only the API response is clamped.
func (s *Server) clampScore(value float64) float64 {
	minScore := float64(s.cfg.RatingScaleMin)
	maxScore := float64(s.cfg.RatingScaleMax)
	switch {
	case value < minScore:
		return minScore
	case value > maxScore:
		return maxScore
	default:
		return value
	}
}

func toUserResponse(user domain.User) userResponse {
	return userResponse{
		ID:      user.ID,
		Email:   user.Email,
		Age:     user.Age,
		Zipcode: user.Zipcode,
	}
}
