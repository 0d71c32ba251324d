package models

import (
	// Go Internal Packages
	"time"

	// External Packages
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Operator is a biller reachable through the aggregator.
type Operator struct {
	ID           primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	OperatorID   string              `json:"operatorId" bson:"operator_id"`
	OperatorName string              `json:"operatorName" bson:"operator_name"`
	Category     string              `json:"category" bson:"category"`
	CategoryName string              `json:"categoryName,omitempty" bson:"category_name,omitempty"`
	Location     string              `json:"location,omitempty" bson:"location,omitempty"`
	LocationName string              `json:"locationName,omitempty" bson:"location_name,omitempty"`
	Logo         string              `json:"logo,omitempty" bson:"logo,omitempty"`
	Description  string              `json:"description,omitempty" bson:"description,omitempty"`
	IsActive     bool                `json:"isActive" bson:"is_active"`
	Parameters   []OperatorParameter `json:"parameters" bson:"parameters"`
	LastSyncedAt time.Time           `json:"lastSyncedAt" bson:"last_synced_at"`
	CreatedAt    time.Time           `json:"createdAt" bson:"created_at"`
	UpdatedAt    time.Time           `json:"updatedAt" bson:"updated_at"`
}

// Parameter input types understood by ValidateParameters.
const (
	ParamText     = "TEXT"
	ParamNumber   = "NUMBER"
	ParamDate     = "DATE"
	ParamDropdown = "DROPDOWN"
)

// OperatorParameter is one input an operator requires for a bill fetch.
type OperatorParameter struct {
	Name       string               `json:"name" bson:"name"`
	Label      string               `json:"label,omitempty" bson:"label,omitempty"`
	Type       string               `json:"type,omitempty" bson:"type,omitempty"`
	Required   bool                 `json:"required" bson:"required"`
	Options    []string             `json:"options,omitempty" bson:"options,omitempty"`
	Validation *ParameterValidation `json:"validation,omitempty" bson:"validation,omitempty"`
}

type ParameterValidation struct {
	MinLength int    `json:"minLength,omitempty" bson:"min_length,omitempty"`
	MaxLength int    `json:"maxLength,omitempty" bson:"max_length,omitempty"`
	Pattern   string `json:"pattern,omitempty" bson:"pattern,omitempty"`
}

// OperatorFilters are passed through to the biller's operator listing.
type OperatorFilters struct {
	Category           string
	OperatorCategoryID string
	Location           string
}

// SubCategoryList names the configured operator sub-categories.
type SubCategoryList struct {
	Version string   `json:"version"`
	Tags    []string `json:"tags"`
}

// Category is an active operator category as returned by the biller.
type Category = map[string]any

// Location is the normalised shape of an operator location.
type Location struct {
	Name         string `json:"operatorLocationName"`
	ID           string `json:"operatorLocationId"`
	Abbreviation string `json:"abbreviation,omitempty"`
}
