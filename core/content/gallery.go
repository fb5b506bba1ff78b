package content

import (
	"context"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

// Media stores uploaded files.
type Media interface {
	// Save stores the content of r under a name derived from filename and returns its public URL.
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
	// Remove deletes the file behind url. URLs it does not serve are ignored.
	Remove(ctx context.Context, url string) error
}

type GalleryService struct {
	*Service[GalleryImage, *GalleryImage]
	media  Media
	logger core.Logger
}

func NewGalleryService(
	repo Repository[GalleryImage],
	validate *validator.Validate,
	authz Authorizer,
	broker *Broker,
	media Media,
	logger core.Logger,
) *GalleryService {
	return &GalleryService{
		Service: NewService[GalleryImage, *GalleryImage](repo, validate, authz, broker, AdminRules),
		media:   media,
		logger:  logger,
	}
}

// Upload stores an image file and creates its GalleryImage.
func (svc *GalleryService) Upload(ctx context.Context, actor *user.User, img GalleryImage, filename string, r io.Reader) (GalleryImage, error) {
	if err := svc.Allowed(ctx, actor, svc.rules.Create); err != nil {
		return GalleryImage{}, err
	}
	url, err := svc.media.Save(ctx, filename, r)
	if err != nil {
		return GalleryImage{}, err
	}

	img.ImageURL = url
	created, err := svc.Create(ctx, actor, img)
	if err != nil {
		if rmErr := svc.media.Remove(ctx, url); rmErr != nil {
			svc.logger.Error("removing orphan upload", errors.Wrap(rmErr, "removing "+url))
		}
		return GalleryImage{}, err
	}
	return created, nil
}

// Delete deletes the GalleryImage and the file it points to.
func (svc *GalleryService) Delete(ctx context.Context, actor *user.User, id string) error {
	img, err := svc.delete(ctx, actor, id)
	if err != nil {
		return err
	}
	if err = svc.media.Remove(ctx, img.ImageURL); err != nil {
		svc.logger.Error("removing gallery image file", errors.Wrap(err, "removing "+img.ImageURL))
	}
	return nil
}
