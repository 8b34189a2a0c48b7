package bids

import (
	"encoding/json"
	serrors "errors"
	"log/slog"
	"net/http"
	"strconv"

	"freelance_market/internal/lib/errors"
	"freelance_market/internal/models/bid"
	"freelance_market/internal/services"
	"freelance_market/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type BidSubmitter interface {
	Submit(req bid.BidRequest) (bid.Bid, error)
}

type BidAccepter interface {
	Accept(bidId, clientId string) (bid.Bid, error)
}

type BidRejecter interface {
	Reject(bidId, clientId, clientMessage string) (bid.Bid, error)
}

type BidWithdrawer interface {
	Withdraw(bidId, freelancerId string) (bid.Bid, error)
}

type BidUpdater interface {
	Update(bidId, freelancerId string, patch bid.BidPatchRequest) (bid.Bid, error)
}

type ProjectBidsReader interface {
	ProjectBids(projectId string, status bid.Status, limit, offset int) ([]bid.Bid, error)
}

type MyBidsReader interface {
	FreelancerBids(freelancerId string, status bid.Status, limit, offset int) ([]bid.Bid, error)
}

type BidStatusReader interface {
	BidStatus(bidId string) (bid.Status, error)
}

func NewPostBid(log *slog.Logger, bidSubmitter BidSubmitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bid.BidRequest

		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()

		err := decoder.Decode(&req)
		if err != nil {
			log.Error("Error decoding request body")
			render.Status(r, 400)
			render.JSON(w, r, errors.NewHttpError("Error decoding request body"))
			return
		}

		err = validate.Struct(req)
		if err != nil {
			log.Error(err.Error())
			render.Status(r, 400)
			render.JSON(w, r, errors.NewHttpError(err.Error()))
			return
		}

		resp, err := bidSubmitter.Submit(req)
		if err != nil {
			renderBidError(w, r, log, err)
			return
		}

		render.JSON(w, r, resp)
	}
}

func NewGetMyBids(log *slog.Logger, myBidsReader MyBidsReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userId := r.URL.Query().Get("userId")
		if userId == "" {
			render.Status(r, 401)
			render.JSON(w, r, errors.NewHttpError("The userId is empty"))
			return
		}

		limit, offset, err := listParams(r)
		if err != nil {
			log.Error(err.Error())
			render.Status(r, 400)
			render.JSON(w, r, errors.NewHttpError(err.Error()))
			return
		}

		resp, err := myBidsReader.FreelancerBids(userId, bid.Status(r.URL.Query().Get("status")), limit, offset)
		if err != nil {
			renderBidError(w, r, log, err)
			return
		}

		render.JSON(w, r, resp)
	}
}

func NewGetProjectBids(log *slog.Logger, projectBidsReader ProjectBidsReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectId := chi.URLParam(r, "projectId")
		if projectId == "" {
			render.Status(r, 400)
			render.JSON(w, r, errors.NewHttpError("The project id is invalid"))
			return
		}

		limit, offset, err := listParams(r)
		if err != nil {
			log.Error(err.Error())
			render.Status(r, 400)
			render.JSON(w, r, errors.NewHttpError(err.Error()))
			return
		}

		resp, err := projectBidsReader.ProjectBids(projectId, bid.Status(r.URL.Query().Get("status")), limit, offset)
		if err != nil {
			renderBidError(w, r, log, err)
			return
		}

		render.JSON(w, r, resp)
	}
}

func NewGetBidStatus(log *slog.Logger, bidStatusReader BidStatusReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bidId := chi.URLParam(r, "bidId")
		if bidId == "" {
			render.Status(r, 400)
			render.JSON(w, r, errors.NewHttpError("The bid id is invalid"))
			return
		}

		resp, err := bidStatusReader.BidStatus(bidId)
		if err != nil {
			renderBidError(w, r, log, err)
			return
		}

		render.JSON(w, r, resp)
	}
}

func NewPatchBid(log *slog.Logger, bidUpdater BidUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bidId := chi.URLParam(r, "bidId")
		if bidId == "" {
			render.Status(r, 400)
			render.JSON(w, r, errors.NewHttpError("The bid id is invalid"))
			return
		}
		userId := r.URL.Query().Get("userId")
		if userId == "" {
			render.Status(r, 401)
			render.JSON(w, r, errors.NewHttpError("The userId is empty"))
			return
		}

		var req bid.BidPatchRequest
		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Error(err.Error())
			render.Status(r, 400)
			render.JSON(w, r, errors.NewHttpError(err.Error()))
			return
		}

		if req.Amount == nil && req.ProposedDurationDays == nil && req.CoverLetter == nil &&
			req.StartDate == nil && req.AvailabilityHoursPerWeek == nil {
			render.Status(r, 400)
			render.JSON(w, r, errors.NewHttpError("The request body is empty"))
			return
		}

		resp, err := bidUpdater.Update(bidId, userId, req)
		if err != nil {
			renderBidError(w, r, log, err)
			return
		}

		render.JSON(w, r, resp)
	}
}

func NewAcceptBid(log *slog.Logger, bidAccepter BidAccepter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bidId := chi.URLParam(r, "bidId")
		if bidId == "" {
			render.Status(r, 400)
			render.JSON(w, r, errors.NewHttpError("The bid id is invalid"))
			return
		}
		userId := r.URL.Query().Get("userId")
		if userId == "" {
			render.Status(r, 401)
			render.JSON(w, r, errors.NewHttpError("The userId is empty"))
			return
		}

		resp, err := bidAccepter.Accept(bidId, userId)
		if err != nil {
			renderBidError(w, r, log, err)
			return
		}

		render.JSON(w, r, resp)
	}
}

func NewRejectBid(log *slog.Logger, bidRejecter BidRejecter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bidId := chi.URLParam(r, "bidId")
		if bidId == "" {
			render.Status(r, 400)
			render.JSON(w, r, errors.NewHttpError("The bid id is invalid"))
			return
		}
		userId := r.URL.Query().Get("userId")
		if userId == "" {
			render.Status(r, 401)
			render.JSON(w, r, errors.NewHttpError("The userId is empty"))
			return
		}

		var req bid.BidRejectRequest
		if r.Body != nil && r.ContentLength != 0 {
			err := render.DecodeJSON(r.Body, &req)
			if err != nil {
				log.Error(err.Error())
				render.Status(r, 400)
				render.JSON(w, r, errors.NewHttpError(err.Error()))
				return
			}
		}

		resp, err := bidRejecter.Reject(bidId, userId, req.ClientMessage)
		if err != nil {
			renderBidError(w, r, log, err)
			return
		}

		render.JSON(w, r, resp)
	}
}

func NewWithdrawBid(log *slog.Logger, bidWithdrawer BidWithdrawer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bidId := chi.URLParam(r, "bidId")
		if bidId == "" {
			render.Status(r, 400)
			render.JSON(w, r, errors.NewHttpError("The bid id is invalid"))
			return
		}
		userId := r.URL.Query().Get("userId")
		if userId == "" {
			render.Status(r, 401)
			render.JSON(w, r, errors.NewHttpError("The userId is empty"))
			return
		}

		resp, err := bidWithdrawer.Withdraw(bidId, userId)
		if err != nil {
			renderBidError(w, r, log, err)
			return
		}

		render.JSON(w, r, resp)
	}
}

func listParams(r *http.Request) (limit, offset int, err error) {
	limit = 5
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 0 {
			return 0, 0, serrors.New("Incorrect limit value")
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			return 0, 0, serrors.New("Incorrect offset value")
		}
	}
	return limit, offset, nil
}

func renderBidError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	log.Error(err.Error())

	var vErr *services.ValidationError
	switch {
	case serrors.As(err, &vErr):
		render.Status(r, 400)
	case serrors.Is(err, services.ErrForbidden):
		render.Status(r, 403)
	case serrors.Is(err, storage.ErrBidNotFound):
		render.Status(r, 404)
	case serrors.Is(err, storage.ErrProjectNotFound):
		render.Status(r, 404)
	case serrors.Is(err, storage.ErrNotPending):
		render.Status(r, 409)
	case serrors.Is(err, storage.ErrDuplicatePending):
		render.Status(r, 409)
	default:
		render.Status(r, 500)
	}
	render.JSON(w, r, errors.NewHttpError(err.Error()))
}
