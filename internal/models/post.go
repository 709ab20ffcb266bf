package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post categories. ScholarshipDetails and JobDetails are only valid on a
// post whose category matches; the posts handler enforces this.
const (
	CategoryNews         = "news"
	CategoryNYSC         = "nysc"
	CategoryScholarships = "scholarships"
	CategoryJobs         = "jobs"
)

// ValidCategory reports whether c is one of the known post categories.
func ValidCategory(c string) bool {
	switch c {
	case CategoryNews, CategoryNYSC, CategoryScholarships, CategoryJobs:
		return true
	}
	return false
}

// ScholarshipDetails holds the extra fields of a scholarship post.
type ScholarshipDetails struct {
	Country      string   `json:"country,omitempty"      bson:"country,omitempty"`
	Degree       string   `json:"degree,omitempty"       bson:"degree,omitempty"`
	Description  string   `json:"description,omitempty"  bson:"description,omitempty"`
	Funding      string   `json:"funding,omitempty"      bson:"funding,omitempty"`
	Deadline     string   `json:"deadline,omitempty"     bson:"deadline,omitempty"`
	Requirements []string `json:"requirements,omitempty" bson:"requirements,omitempty"`
}

// Salary is a parsed salary range in whole currency units.
type Salary struct {
	Min float64 `json:"min,omitempty" bson:"min,omitempty"`
	Max float64 `json:"max,omitempty" bson:"max,omitempty"`
}

// JobDetails holds the extra fields of a job post. SalaryRange keeps the
// original display string alongside the parsed Salary.
type JobDetails struct {
	Company             string   `json:"company,omitempty"             bson:"company,omitempty"`
	Location            string   `json:"location,omitempty"            bson:"location,omitempty"`
	JobType             string   `json:"jobType,omitempty"             bson:"job_type,omitempty"`
	Salary              Salary   `json:"salary,omitempty"              bson:"salary,omitempty"`
	SalaryRange         string   `json:"salaryRange,omitempty"         bson:"salary_range,omitempty"`
	ExperienceRequired  string   `json:"experienceRequired,omitempty"  bson:"experience_required,omitempty"`
	ApplicationDeadline string   `json:"applicationDeadline,omitempty" bson:"application_deadline,omitempty"`
	Requirements        []string `json:"requirements,omitempty"        bson:"requirements,omitempty"`
	Responsibilities    []string `json:"responsibilities,omitempty"    bson:"responsibilities,omitempty"`
	Link                string   `json:"link,omitempty"                bson:"link,omitempty"`
}

// Post is a blog post stored in MongoDB. Author references a PostgreSQL
// user by UUID. Title and slug carry unique indexes; the indexes are the
// safety net for the concurrent-create race the handlers cannot close.
type Post struct {
	ID                 primitive.ObjectID  `json:"id"                           bson:"_id,omitempty"`
	Title              string              `json:"title"                        bson:"title"`
	Slug               string              `json:"slug"                         bson:"slug"`
	Body               string              `json:"body"                         bson:"body"`
	Category           string              `json:"category"                     bson:"category"`
	Author             string              `json:"author"                       bson:"author"`
	ImagePath          string              `json:"image_path,omitempty"         bson:"image_path,omitempty"`
	Tags               []string            `json:"tags"                         bson:"tags"`
	Likes              []string            `json:"likes"                        bson:"likes"`
	LikeCount          int                 `json:"likeCount"                    bson:"like_count"`
	CommentCount       int                 `json:"commentCount"                 bson:"comment_count"`
	ScholarshipDetails *ScholarshipDetails `json:"scholarshipDetails,omitempty" bson:"scholarship_details,omitempty"`
	JobDetails         *JobDetails         `json:"jobDetails,omitempty"         bson:"job_details,omitempty"`
	CreatedAt          time.Time           `json:"createdAt"                    bson:"created_at"`
	UpdatedAt          time.Time           `json:"updatedAt"                    bson:"updated_at"`

	// AuthorInfo is populated from PostgreSQL in responses only.
	AuthorInfo *PublicUser `json:"authorInfo,omitempty" bson:"-"`
}

// PostSummary is the projection used by the top-N metrics lists.
type PostSummary struct {
	ID           primitive.ObjectID `json:"id"                     bson:"_id"`
	Title        string             `json:"title"                  bson:"title"`
	LikeCount    int                `json:"likeCount,omitempty"    bson:"like_count"`
	CommentCount int                `json:"commentCount,omitempty" bson:"comment_count"`
}
