package evidence

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockBlob struct {
	mock.Mock
}

func (m *mockBlob) Fetch(ctx context.Context, filename string) ([]byte, error) {
	args := m.Called(ctx, filename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type mockRenderer struct {
	mock.Mock
}

func (m *mockRenderer) PageCount(ctx context.Context, pdfPath string) (int, error) {
	args := m.Called(ctx, pdfPath)
	return args.Int(0), args.Error(1)
}

func (m *mockRenderer) RenderPage(ctx context.Context, pdfPath string, page int, outPath string) error {
	args := m.Called(ctx, pdfPath, page, outPath)
	return args.Error(0)
}

type mockRecognizer struct {
	mock.Mock
}

func (m *mockRecognizer) Recognize(ctx context.Context, imagePath string) (string, error) {
	args := m.Called(ctx, imagePath)
	return args.String(0), args.Error(1)
}

func TestExtract_HappyPath(t *testing.T) {
	b := new(mockBlob)
	r := new(mockRenderer)
	rec := new(mockRecognizer)

	b.On("Fetch", mock.Anything, "inv-001.pdf").Return([]byte("%PDF"), nil)
	r.On("PageCount", mock.Anything, mock.Anything).Return(2, nil)
	r.On("RenderPage", mock.Anything, mock.Anything, 1, mock.Anything).Return(nil)
	rec.On("Recognize", mock.Anything, mock.Anything).Return("  Ship To: 12 Oak St\n", nil)

	ex := NewExtractor(b, r, rec, 3, 8000)
	got := ex.Extract(context.Background(), "inv-001.pdf")

	assert.True(t, got.Ok())
	assert.Equal(t, "Ship To: 12 Oak St", got.Text)
	b.AssertExpectations(t)
	r.AssertExpectations(t)
	rec.AssertExpectations(t)
}

func TestExtract_TooLargeSkipsRenderAndRecognition(t *testing.T) {
	b := new(mockBlob)
	r := new(mockRenderer)
	rec := new(mockRecognizer)

	b.On("Fetch", mock.Anything, "big.pdf").Return([]byte("%PDF"), nil)
	r.On("PageCount", mock.Anything, mock.Anything).Return(4, nil)

	ex := NewExtractor(b, r, rec, 3, 8000)
	got := ex.Extract(context.Background(), "big.pdf")

	assert.True(t, got.TooLarge)
	assert.False(t, got.Failed)
	r.AssertNotCalled(t, "RenderPage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	rec.AssertNotCalled(t, "Recognize", mock.Anything, mock.Anything)
}

func TestExtract_AtCapStillProcessed(t *testing.T) {
	b := new(mockBlob)
	r := new(mockRenderer)
	rec := new(mockRecognizer)

	b.On("Fetch", mock.Anything, "edge.pdf").Return([]byte("%PDF"), nil)
	r.On("PageCount", mock.Anything, mock.Anything).Return(3, nil)
	r.On("RenderPage", mock.Anything, mock.Anything, 1, mock.Anything).Return(nil)
	rec.On("Recognize", mock.Anything, mock.Anything).Return("text", nil)

	ex := NewExtractor(b, r, rec, 3, 8000)
	got := ex.Extract(context.Background(), "edge.pdf")

	assert.True(t, got.Ok())
}

func TestExtract_FetchFailureIsFailedNotTooLarge(t *testing.T) {
	b := new(mockBlob)
	b.On("Fetch", mock.Anything, "gone.pdf").Return(nil, eris.New("not found"))

	ex := NewExtractor(b, new(mockRenderer), new(mockRecognizer), 3, 8000)
	got := ex.Extract(context.Background(), "gone.pdf")

	assert.True(t, got.Failed)
	assert.False(t, got.TooLarge)
}

func TestExtract_RecognitionFailure(t *testing.T) {
	b := new(mockBlob)
	r := new(mockRenderer)
	rec := new(mockRecognizer)

	b.On("Fetch", mock.Anything, "inv.pdf").Return([]byte("%PDF"), nil)
	r.On("PageCount", mock.Anything, mock.Anything).Return(1, nil)
	r.On("RenderPage", mock.Anything, mock.Anything, 1, mock.Anything).Return(nil)
	rec.On("Recognize", mock.Anything, mock.Anything).Return("", eris.New("ocr crashed"))

	ex := NewExtractor(b, r, rec, 3, 8000)
	got := ex.Extract(context.Background(), "inv.pdf")

	assert.True(t, got.Failed)
}

func TestExtract_BoundsText(t *testing.T) {
	b := new(mockBlob)
	r := new(mockRenderer)
	rec := new(mockRecognizer)

	b.On("Fetch", mock.Anything, "long.pdf").Return([]byte("%PDF"), nil)
	r.On("PageCount", mock.Anything, mock.Anything).Return(1, nil)
	r.On("RenderPage", mock.Anything, mock.Anything, 1, mock.Anything).Return(nil)
	rec.On("Recognize", mock.Anything, mock.Anything).Return(strings.Repeat("x", 500), nil)

	ex := NewExtractor(b, r, rec, 3, 100)
	got := ex.Extract(context.Background(), "long.pdf")

	assert.Len(t, got.Text, 100)
}

func TestParsePageCount(t *testing.T) {
	out := "Title:          Invoice\nPages:          7\nEncrypted:      no\n"
	n, err := parsePageCount(out)
	assert.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = parsePageCount("Title: whatever\n")
	assert.Error(t, err)

	_, err = parsePageCount("Pages: several\n")
	assert.Error(t, err)
}
