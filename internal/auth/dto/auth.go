package dto

type RegisterFCMTokenRequest struct {
	UserID     string `json:"userId" binding:"required"`
	Token      string `json:"token" binding:"required"`
	DeviceInfo string `json:"deviceInfo"`
}
