package domain

import "errors"

var (
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrInvalidQuantity   = errors.New("quantity must be a positive integer")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrLineNotFound      = errors.New("cart line not found")
	ErrFavoriteNotFound  = errors.New("favorite not found")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInvalidPayment    = errors.New("invalid payment details")
	ErrInvalidAddress    = errors.New("invalid shipping address")
	ErrOrderNotPlaced    = errors.New("order not placed")
)
