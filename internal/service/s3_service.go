package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"upload-broker/config"
	"upload-broker/internal/model"
	"upload-broker/internal/util"
)

// opTimeout ограничивает каждый вызов к хранилищу,
// таймаут всплывает к вызывающему как повторяемая ошибка
const opTimeout = 15 * time.Second

type S3Service struct {
	client   *s3.Client
	bucket   string
	psClient *s3.PresignClient
}

func NewS3Service(ctx context.Context, cfg *config.S3Config) (*S3Service, error) {
	var client *s3.Client

	if cfg.Local {
		client = s3.New(s3.Options{
			Region: cfg.Region,
			Credentials: credentials.NewStaticCredentialsProvider(
				"minioadmin",
				"minioadmin",
				"",
			),
			BaseEndpoint: aws.String(cfg.Endpoint),
			UsePathStyle: true,
		})

		if err := createBucketIfNotExists(ctx, client, cfg.Bucket); err != nil {
			return nil, util.LogError("[S3Service] ошибка создания бакета", err)
		}
	} else {
		awsCfg, err := awsConfig.LoadDefaultConfig(ctx, awsConfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, util.LogError("[S3Service] ошибка загрузки AWS config", err)
		}
		client = s3.NewFromConfig(awsCfg)
	}

	psClient := s3.NewPresignClient(client)

	return &S3Service{
		client:   client,
		psClient: psClient,
		bucket:   cfg.Bucket,
	}, nil
}

// createBucketIfNotExists создает бакет если он не существует
func createBucketIfNotExists(ctx context.Context, client *s3.Client, bucket string) error {
	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})

	if err == nil {
		return nil // Бакет уже существует
	}

	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	})

	if err != nil {
		return util.LogError("[S3Service] ошибка создания бакета", err)
	}

	log.Printf("[S3Service] бакет %s успешно создан", bucket)
	return nil
}

// GeneratePresignedPutURL : одноразовый pre-signed PUT URL, ограниченный
// одним ключом и окном expire. Сырые креденшелы клиенту не выдаются.
func (s *S3Service) GeneratePresignedPutURL(ctx context.Context, key string, contentType string, expire time.Duration) (string, error) {
	req, err := s.psClient.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expire
	})
	if err != nil {
		return "", util.LogError("[S3Service] не удалось сгенерировать presigned PUT URL", err)
	}
	return req.URL, nil
}

// HeadObject : размер staging-объекта или model.ErrObjectNotFound
func (s *S3Service) HeadObject(ctx context.Context, key string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return 0, model.ErrObjectNotFound
		}
		return 0, util.LogError("[S3Service] ошибка HEAD запроса", err)
	}

	return aws.ToInt64(head.ContentLength), nil
}

// ReadPrefix : первые n байт объекта через ranged GET
func (s *S3Service) ReadPrefix(ctx context.Context, key string, n int) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	object, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Range:  aws.String(fmt.Sprintf("bytes=0-%d", n-1)),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, model.ErrObjectNotFound
		}
		return nil, util.LogError("[S3Service] ошибка чтения префикса объекта", err)
	}
	defer object.Body.Close()

	prefix, err := io.ReadAll(io.LimitReader(object.Body, int64(n)))
	if err != nil {
		return nil, util.LogError("[S3Service] ошибка чтения тела объекта", err)
	}

	return prefix, nil
}

// CopyObject : серверное копирование staging -> permanent.
// При overwrite=false занятый ключ назначения даёт model.ErrConflict.
func (s *S3Service) CopyObject(ctx context.Context, sourceKey string, destinationKey string, overwrite bool) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if !overwrite {
		_, err := s.HeadObject(ctx, destinationKey)
		if err == nil {
			return model.ErrConflict
		}
		if !errors.Is(err, model.ErrObjectNotFound) {
			return err
		}
	}

	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		CopySource: aws.String(url.PathEscape(s.bucket + "/" + sourceKey)),
		Key:        aws.String(destinationKey),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return model.ErrObjectNotFound
		}
		return util.LogError("[S3Service] не удалось скопировать объект", err)
	}

	return nil
}

// DeleteObject : удаление объекта, отсутствие объекта не считается ошибкой
func (s *S3Service) DeleteObject(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return util.LogError("[S3Service] не удалось удалить объект", err)
	}
	return nil
}
