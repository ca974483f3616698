// Package azureblob implements the Azure blob storage connection. Files live
// as blobs in one configured container; "containers" below it are virtual
// directories formed by "/" in blob names.
package azureblob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/menta2k/image-labeler/internal/utils"
	"github.com/menta2k/image-labeler/pkg/assets"
	"github.com/menta2k/image-labeler/pkg/errdefs"
	"github.com/menta2k/image-labeler/pkg/storage"
	"github.com/menta2k/image-labeler/pkg/types"
)

// ProviderName is the registry key of the Azure blob provider
const ProviderName = "azureBlobStorage"

// Options configures the blob connection
type Options struct {
	AccountName     string
	ContainerName   string
	SAS             string
	CreateContainer bool
	// ServiceURL overrides https://<account>.blob.core.windows.net (emulators).
	ServiceURL string
}

// OptionsFromProvider reads Options from connection options
func OptionsFromProvider(opts types.ProviderOptions) (Options, error) {
	if err := opts.Require("accountName", "containerName"); err != nil {
		return Options{}, fmt.Errorf("azure blob storage: %v: %w", err, errdefs.ErrInvalidArgument)
	}
	return Options{
		AccountName:     opts.String("accountName"),
		ContainerName:   opts.String("containerName"),
		SAS:             strings.TrimPrefix(opts.String("sas"), "?"),
		CreateContainer: opts.Bool("createContainer", false),
		ServiceURL:      opts.String("serviceURL"),
	}, nil
}

// BlobStorage is a storage and asset provider backed by one blob container
type BlobStorage struct {
	opts   Options
	client *azblob.Client
}

// New creates a BlobStorage. No request is made until the first operation.
func New(opts Options) (*BlobStorage, error) {
	if opts.AccountName == "" || opts.ContainerName == "" {
		return nil, fmt.Errorf("azure blob storage: accountName and containerName are required: %w", errdefs.ErrInvalidArgument)
	}
	client, err := azblob.NewClientWithNoCredential(serviceURLWithSAS(opts), nil)
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}
	return &BlobStorage{opts: opts, client: client}, nil
}

// FromOptions builds a BlobStorage from connection options
func FromOptions(opts types.ProviderOptions) (*BlobStorage, error) {
	o, err := OptionsFromProvider(opts)
	if err != nil {
		return nil, err
	}
	return New(o)
}

// StorageRegistration describes the provider for the storage registry
func StorageRegistration() storage.Registration {
	return storage.Registration{
		Name:        ProviderName,
		DisplayName: "Azure Blob Storage",
		Description: "Read and write blobs in an Azure storage container",
		Factory: func(opts types.ProviderOptions) (storage.Provider, error) {
			return FromOptions(opts)
		},
	}
}

// AssetRegistration describes the provider for the asset registry
func AssetRegistration() assets.Registration {
	return assets.Registration{
		Name:        ProviderName,
		DisplayName: "Azure Blob Storage",
		Description: "Images and videos stored in an Azure storage container",
		Factory: func(opts types.ProviderOptions) (assets.Provider, error) {
			return FromOptions(opts)
		},
	}
}

func baseURL(opts Options) string {
	if opts.ServiceURL != "" {
		return strings.TrimRight(opts.ServiceURL, "/")
	}
	return fmt.Sprintf("https://%s.blob.core.windows.net", opts.AccountName)
}

func serviceURLWithSAS(opts Options) string {
	u := baseURL(opts) + "/"
	if opts.SAS != "" {
		u += "?" + opts.SAS
	}
	return u
}

// BlobURL returns the externally reachable URL of a blob, including the SAS
func (b *BlobStorage) BlobURL(containerName, blobName string) string {
	escaped := make([]string, 0)
	for _, seg := range strings.Split(blobName, "/") {
		escaped = append(escaped, url.PathEscape(seg))
	}
	u := fmt.Sprintf("%s/%s/%s", baseURL(b.opts), containerName, strings.Join(escaped, "/"))
	if b.opts.SAS != "" {
		u += "?" + b.opts.SAS
	}
	return u
}

func mapErr(op, name string, err error) error {
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound, bloberror.ResourceNotFound) {
		return fmt.Errorf("%s %s: %w", op, name, errdefs.ErrNotFound)
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		if respErr.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%s %s: %w", op, name, errdefs.ErrNotFound)
		}
		return fmt.Errorf("%s %s: %w", op, name, err)
	}
	return fmt.Errorf("%s %s: %w: %v", op, name, errdefs.ErrConnection, err)
}

// Initialize creates the container when CreateContainer is set
func (b *BlobStorage) Initialize(ctx context.Context) error {
	if !b.opts.CreateContainer {
		return nil
	}
	return b.CreateContainer(ctx, "")
}

// ReadText reads a blob as a string
func (b *BlobStorage) ReadText(ctx context.Context, p string) (string, error) {
	data, err := b.ReadBinary(ctx, p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ReadBinary downloads a blob
func (b *BlobStorage) ReadBinary(ctx context.Context, p string) ([]byte, error) {
	name := storage.CleanPath(p)
	resp, err := b.client.DownloadStream(ctx, b.opts.ContainerName, name, nil)
	if err != nil {
		return nil, mapErr("read", name, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// WriteText uploads content as a block blob
func (b *BlobStorage) WriteText(ctx context.Context, p string, content string) error {
	return b.WriteBinary(ctx, p, []byte(content))
}

// WriteBinary uploads data as a block blob
func (b *BlobStorage) WriteBinary(ctx context.Context, p string, data []byte) error {
	name := storage.CleanPath(p)
	if _, err := b.client.UploadBuffer(ctx, b.opts.ContainerName, name, data, nil); err != nil {
		return mapErr("write", name, err)
	}
	return nil
}

// DeleteFile deletes a blob; a missing blob is not an error
func (b *BlobStorage) DeleteFile(ctx context.Context, p string) error {
	name := storage.CleanPath(p)
	if _, err := b.client.DeleteBlob(ctx, b.opts.ContainerName, name, nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil
		}
		return mapErr("delete", name, err)
	}
	return nil
}

func dirPrefix(dir string) string {
	dir = storage.CleanPath(dir)
	if dir == "" {
		return ""
	}
	return dir + "/"
}

// ListFiles lists blobs directly under dir whose names end in ext
func (b *BlobStorage) ListFiles(ctx context.Context, dir string, ext string) ([]string, error) {
	names, _, err := b.listHierarchy(ctx, b.opts.ContainerName, dirPrefix(dir))
	if err != nil {
		return nil, err
	}
	var out []string
	for _, n := range names {
		if strings.HasSuffix(n, ext) {
			out = append(out, n)
		}
	}
	return out, nil
}

// ListContainers lists virtual directories directly under dir
func (b *BlobStorage) ListContainers(ctx context.Context, dir string) ([]string, error) {
	_, prefixes, err := b.listHierarchy(ctx, b.opts.ContainerName, dirPrefix(dir))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		out = append(out, strings.TrimSuffix(p, "/"))
	}
	return out, nil
}

func (b *BlobStorage) listHierarchy(ctx context.Context, containerName, prefix string) (blobs, prefixes []string, err error) {
	cc := b.client.ServiceClient().NewContainerClient(containerName)
	opts := &container.ListBlobsHierarchyOptions{}
	if prefix != "" {
		opts.Prefix = &prefix
	}
	pager := cc.NewListBlobsHierarchyPager("/", opts)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, nil, mapErr("list", containerName+"/"+prefix, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				blobs = append(blobs, *item.Name)
			}
		}
		for _, p := range page.Segment.BlobPrefixes {
			if p.Name != nil {
				prefixes = append(prefixes, *p.Name)
			}
		}
	}
	return blobs, prefixes, nil
}

// CreateContainer creates the blob container for dir == "". Virtual
// directories need no creation.
func (b *BlobStorage) CreateContainer(ctx context.Context, dir string) error {
	if storage.CleanPath(dir) != "" {
		return nil
	}
	if _, err := b.client.CreateContainer(ctx, b.opts.ContainerName, nil); err != nil {
		if bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return nil
		}
		return mapErr("create container", b.opts.ContainerName, err)
	}
	return nil
}

// DeleteContainer deletes every blob below dir, or the whole container for
// dir == ""
func (b *BlobStorage) DeleteContainer(ctx context.Context, dir string) error {
	prefix := dirPrefix(dir)
	if prefix == "" {
		if _, err := b.client.DeleteContainer(ctx, b.opts.ContainerName, nil); err != nil {
			return mapErr("delete container", b.opts.ContainerName, err)
		}
		return nil
	}
	pager := b.client.NewListBlobsFlatPager(b.opts.ContainerName, &azblob.ListBlobsFlatOptions{Prefix: &prefix})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return mapErr("list", prefix, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			if err := b.DeleteFile(ctx, *item.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

// GetAssets lists the image and video blobs in containerName (or the
// configured container). Asset paths are blob URLs carrying the SAS.
func (b *BlobStorage) GetAssets(ctx context.Context, containerName string) ([]types.Asset, error) {
	if containerName == "" {
		containerName = b.opts.ContainerName
	}
	pager := b.client.NewListBlobsFlatPager(containerName, nil)
	var out []types.Asset
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, mapErr("list assets in", containerName, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil || !utils.IsMediaFile(*item.Name) {
				continue
			}
			out = append(out, assets.CreateFromPath(b.BlobURL(containerName, *item.Name)))
		}
	}
	return out, nil
}

var (
	_ storage.Provider    = (*BlobStorage)(nil)
	_ storage.Initializer = (*BlobStorage)(nil)
	_ assets.Provider     = (*BlobStorage)(nil)
)
