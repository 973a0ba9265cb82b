package httpapi

import (
	"github.com/pixelmart/storefront/internal/app/services/accounts"
	"github.com/pixelmart/storefront/internal/app/services/catalog"
)

func toRegisterInput(username, email, password, phone string) accounts.RegisterInput {
	return accounts.RegisterInput{
		Username: username,
		Email:    email,
		Password: password,
		Phone:    phone,
	}
}

func toUpdateInput(name, description *string, priceCents *int64, category *string, stock *int, imageURL *string, active *bool) catalog.UpdateInput {
	return catalog.UpdateInput{
		Name:        name,
		Description: description,
		PriceCents:  priceCents,
		Category:    category,
		Stock:       stock,
		ImageURL:    imageURL,
		Active:      active,
	}
}
