package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuthorInfo identifies an anonymous comment author. Used only when the
// comment has no registered author reference.
type AuthorInfo struct {
	FullName string `json:"fullName,omitempty" bson:"full_name,omitempty"`
	Email    string `json:"email,omitempty"    bson:"email,omitempty"`
}

// Comment is a comment on a post, stored in MongoDB. Exactly one of
// Author (registered user UUID) and AuthorInfo is populated. Replies are
// references to other comments, not owned substructures.
type Comment struct {
	ID         primitive.ObjectID   `json:"id"                    bson:"_id,omitempty"`
	Content    string               `json:"content"               bson:"content"`
	Author     string               `json:"author,omitempty"      bson:"author,omitempty"`
	AuthorInfo *AuthorInfo          `json:"author_info,omitempty" bson:"author_info,omitempty"`
	Post       primitive.ObjectID   `json:"post"                  bson:"post"`
	Likes      []string             `json:"likes"                 bson:"likes"`
	LikeCount  int                  `json:"likeCount"             bson:"like_count"`
	Replies    []primitive.ObjectID `json:"-"                     bson:"replies,omitempty"`
	CreatedAt  time.Time            `json:"createdAt"             bson:"created_at"`
	UpdatedAt  time.Time            `json:"updatedAt"             bson:"updated_at"`

	// Populated in responses only.
	AuthorUser      *PublicUser `json:"authorUser,omitempty" bson:"-"`
	RepliesExpanded []Comment   `json:"replies,omitempty"    bson:"-"`
}

// CommentRequest is the JSON body for POST /{postId}.
type CommentRequest struct {
	Content    string      `json:"content" validate:"required,max=500"`
	AuthorID   string      `json:"authorId"`
	AuthorInfo *AuthorInfo `json:"author_info"`
}
