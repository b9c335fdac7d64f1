package reddit

import (
	"path"
	"sort"
	"strings"
	"time"

	"github.com/feedlake/social-crawler/internal/crawl"
)

type aboutResponse struct {
	Data struct {
		ID         string  `json:"id"`
		Name       string  `json:"name"`
		CreatedUTC float64 `json:"created_utc"`
		Subreddit  *struct {
			Subscribers int `json:"subscribers"`
		} `json:"subreddit"`
	} `json:"data"`
}

type listingResponse struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Kind string     `json:"kind"`
			Data submission `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type submission struct {
	AuthorFullname string  `json:"author_fullname"`
	Author         string  `json:"author"`
	Title          string  `json:"title"`
	Selftext       string  `json:"selftext"`
	CreatedUTC     float64 `json:"created_utc"`
	Score          int     `json:"score"`
	NumCrossposts  int     `json:"num_crossposts"`
	NumComments    int     `json:"num_comments"`

	URLOverriddenByDest string `json:"url_overridden_by_dest"`

	IsGallery     bool `json:"is_gallery"`
	MediaMetadata map[string]struct {
		S struct {
			U   string `json:"u"`
			GIF string `json:"gif"`
			MP4 string `json:"mp4"`
		} `json:"s"`
	} `json:"media_metadata"`

	Media *struct {
		RedditVideo *struct {
			FallbackURL string `json:"fallback_url"`
		} `json:"reddit_video"`
	} `json:"media"`

	Preview *struct {
		Images []struct {
			Source struct {
				URL string `json:"url"`
			} `json:"source"`
		} `json:"images"`
	} `json:"preview"`
}

func (s submission) toRawPost() crawl.RawPost {
	text := s.Title
	if s.Selftext != "" {
		text = s.Title + "\n\n" + s.Selftext
	}
	return crawl.RawPost{
		AuthorID:  s.authorID(),
		Text:      text,
		CreatedAt: time.Unix(int64(s.CreatedUTC), 0).UTC(),
		Likes:     s.Score,
		Reposts:   s.NumCrossposts,
		Comments:  s.NumComments,
		MediaURLs: s.mediaURLs(),
	}
}

func (s submission) authorID() string {
	if s.AuthorFullname != "" {
		return s.AuthorFullname
	}
	return s.Author
}

var mediaExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".mp4":  true,
	".webm": true,
}

// mediaURLs collects every downloadable media reference the submission
// carries: a direct media link, gallery items, hosted video, and preview
// stills, concatenated in that order. All sources contribute; duplicates
// between them are kept.
func (s submission) mediaURLs() []string {
	var urls []string

	if u := s.URLOverriddenByDest; u != "" {
		if ext := strings.ToLower(path.Ext(strings.SplitN(u, "?", 2)[0])); mediaExtensions[ext] {
			urls = append(urls, u)
		}
	}

	if s.IsGallery && len(s.MediaMetadata) > 0 {
		// Map iteration order is random; sort ids so repeated crawls of
		// the same post emit the same sequence.
		ids := make([]string, 0, len(s.MediaMetadata))
		for id := range s.MediaMetadata {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			item := s.MediaMetadata[id].S
			switch {
			case item.U != "":
				urls = append(urls, item.U)
			case item.GIF != "":
				urls = append(urls, item.GIF)
			case item.MP4 != "":
				urls = append(urls, item.MP4)
			}
		}
	}

	if s.Media != nil && s.Media.RedditVideo != nil && s.Media.RedditVideo.FallbackURL != "" {
		urls = append(urls, s.Media.RedditVideo.FallbackURL)
	}

	if s.Preview != nil {
		for _, img := range s.Preview.Images {
			if img.Source.URL != "" {
				urls = append(urls, img.Source.URL)
			}
		}
	}

	return urls
}
