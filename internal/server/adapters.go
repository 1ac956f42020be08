package server

import (
	"context"

	authapp "github.com/campuscycle/campuscycle/internal/services/auth/app"
	chatapp "github.com/campuscycle/campuscycle/internal/services/chat/app"
	marketapp "github.com/campuscycle/campuscycle/internal/services/market/app"
)

// userDirectory lets the marketplace resolve profiles from the identity
// service without importing its storage.
type userDirectory struct {
	auth *authapp.Service
}

func (d userDirectory) LookupUser(ctx context.Context, userID string) (marketapp.UserRef, error) {
	user, err := d.auth.GetUser(ctx, userID)
	if err != nil {
		return marketapp.UserRef{}, err
	}
	return marketapp.UserRef{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
		CampusID:  user.CampusID,
	}, nil
}

// listingLookup lets conversations resolve listings from the marketplace.
type listingLookup struct {
	market *marketapp.Service
}

func (l listingLookup) LookupListing(ctx context.Context, listingID string) (chatapp.Listing, error) {
	listing, err := l.market.LookupListing(ctx, listingID)
	if err != nil {
		return chatapp.Listing{}, err
	}
	return chatapp.Listing{
		ID:         listing.ID,
		SellerID:   listing.SellerID,
		CampusID:   listing.CampusID,
		Title:      listing.Title,
		PriceCents: listing.PriceCents,
		Giveaway:   listing.Giveaway,
		Status:     string(listing.Status),
		ImageURL:   listing.ImageURL,
	}, nil
}

// chatUserLookup lets conversations resolve participant profiles from the
// identity service.
type chatUserLookup struct {
	auth *authapp.Service
}

func (l chatUserLookup) LookupUser(ctx context.Context, userID string) (chatapp.UserRef, error) {
	user, err := l.auth.GetUser(ctx, userID)
	if err != nil {
		return chatapp.UserRef{}, err
	}
	return chatapp.UserRef{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
	}, nil
}
