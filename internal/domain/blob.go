package domain

import "time"

// Blob is the server-side view of a stored shard. The server knows only who
// owns it and how large it is.
type Blob struct {
	UserID    string    `json:"user_id"`
	ShardID   string    `json:"shard_id"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

type DeleteBlobsRequest struct {
	Paths []string `json:"paths" validate:"required,min=1,max=256,dive,required"`
}

type DeleteBlobsResponse struct {
	Deleted int `json:"deleted"`
}
