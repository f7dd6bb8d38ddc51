package model

type Location struct {
	ID       string `json:"id,omitempty" bson:"_id,omitempty"`
	District string `json:"district" bson:"district" validate:"required,min=2,max=100"`
	Name     string `json:"name" bson:"name" validate:"required,min=2,max=100"`
	IsActive bool   `json:"is_active" bson:"is_active"`
}

type CarModel struct {
	ID      string `json:"id,omitempty" bson:"_id,omitempty"`
	Brand   string `json:"brand" bson:"brand" validate:"required,min=2,max=50"`
	Model   string `json:"model" bson:"model" validate:"required,min=1,max=50"`
	CarType string `json:"car_type" bson:"car_type" validate:"required,oneof=hatchback sedan suv muv luxury"`
}
