package portaltest

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"io/ioutil"
	"net/http"
	"strconv"

	"github.com/c2h5oh/datasize"
	"github.com/go-chi/chi"

	"github.com/dse-portal/noticeboard/types"
	"github.com/dse-portal/noticeboard/util"
)

const multipartPartKey string = "file"

// The server-side upload limit mirrors the client's pre-check
const maxUploadBytes = int64(10 * datasize.MB)

// listActive gets all posts inside the retention window
func (s *Server) listActive() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"posts": s.Store.ListActive(),
		})
	}
}

// listArchived gets all posts that have aged past the retention window
func (s *Server) listArchived() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"posts": s.Store.ListArchived(),
		})
	}
}

// getSingle gets a single post by its ID
func (s *Server) getSingle() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := urlParamInt(r, "id")
		if err != nil {
			util.ErrorWithCode(w, err, http.StatusBadRequest)
			return
		}

		post, err := s.Store.GetPost(id)
		if err != nil {
			util.Error(w, err)
			return
		}

		writeJSON(w, http.StatusOK, post)
	}
}

// getArchived gets a single post by its ID,
// failing unless it is in the archived bucket
func (s *Server) getArchived() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := urlParamInt(r, "id")
		if err != nil {
			util.ErrorWithCode(w, err, http.StatusBadRequest)
			return
		}

		post, err := s.Store.GetArchivedPost(id)
		if err != nil {
			util.Error(w, err)
			return
		}

		writeJSON(w, http.StatusOK, post)
	}
}

// archiveStats reports how posts partition across the two buckets
func (s *Server) archiveStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.Store.Stats())
	}
}

// create creates a new post in the active collection
func (s *Server) create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload types.PostCreate
		err := json.NewDecoder(r.Body).Decode(&payload)
		if err != nil {
			util.ErrorWithCode(w, err, http.StatusBadRequest)
			return
		}

		if err := payload.Validate(); err != nil {
			util.ErrorWithCode(w, err, http.StatusBadRequest)
			return
		}

		post := s.Store.CreatePost(payload)
		writeJSON(w, http.StatusCreated, post)
	}
}

// update replaces a post's fields wholesale
func (s *Server) update() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := urlParamInt(r, "id")
		if err != nil {
			util.ErrorWithCode(w, err, http.StatusBadRequest)
			return
		}

		var payload types.PostUpdate
		err = json.NewDecoder(r.Body).Decode(&payload)
		if err != nil {
			util.ErrorWithCode(w, err, http.StatusBadRequest)
			return
		}

		if err := payload.Validate(); err != nil {
			util.ErrorWithCode(w, err, http.StatusBadRequest)
			return
		}

		post, err := s.Store.UpdatePost(id, payload)
		if err != nil {
			util.Error(w, err)
			return
		}

		writeJSON(w, http.StatusOK, post)
	}
}

// remove deletes a post and cascades to its attachments
func (s *Server) remove() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := urlParamInt(r, "id")
		if err != nil {
			util.ErrorWithCode(w, err, http.StatusBadRequest)
			return
		}

		err = s.Store.DeletePost(id)
		if err != nil {
			util.Error(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// addAttachment takes in a multipart request, stores the file part,
// and returns the entire updated post
func (s *Server) addAttachment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := urlParamInt(r, "id")
		if err != nil {
			util.ErrorWithCode(w, err, http.StatusBadRequest)
			return
		}

		// Limit the read size to the configured size
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

		// Get the multipart part for the file
		mr, err := r.MultipartReader()
		if err != nil {
			util.ErrorWithCode(w, err, http.StatusBadRequest)
			return
		}
		var uploadFile io.Reader = nil
		filename := ""
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				util.ErrorWithCode(w, err, http.StatusBadRequest)
				return
			}

			if p.FormName() == multipartPartKey {
				uploadFile = p
				filename = p.FileName()
				break
			}
		}

		// Ensure a file was passed in
		if uploadFile == nil {
			util.ErrorWithCode(w,
				errors.New("expected multipart form submission with a 'file' entry"),
				http.StatusBadRequest)
			return
		}

		// Only the first 512 bytes are used to sniff the content type,
		// so create a multi-reader to pass the file on
		headerBuffer := make([]byte, 512)
		n, err := io.ReadFull(uploadFile, headerBuffer)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			util.ErrorWithCode(w, err, http.StatusBadRequest)
			return
		}
		headerBuffer = headerBuffer[:n]
		headerReader := bytes.NewReader(headerBuffer)
		fileReader := io.MultiReader(headerReader, uploadFile)

		contentType := http.DetectContentType(headerBuffer)

		data, err := ioutil.ReadAll(fileReader)
		if err != nil {
			util.ErrorWithCode(w, err, http.StatusRequestEntityTooLarge)
			return
		}

		post, err := s.Store.AddAttachment(id, filename, contentType, data)
		if err != nil {
			util.Error(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, post)
	}
}

// removeAttachment deletes one attachment from a post
// and returns the entire updated post
func (s *Server) removeAttachment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID, err := urlParamInt(r, "postID")
		if err != nil {
			util.ErrorWithCode(w, err, http.StatusBadRequest)
			return
		}

		fileID, err := urlParamInt(r, "fileID")
		if err != nil {
			util.ErrorWithCode(w, err, http.StatusBadRequest)
			return
		}

		post, err := s.Store.RemoveAttachment(postID, fileID)
		if err != nil {
			util.Error(w, err)
			return
		}

		writeJSON(w, http.StatusOK, post)
	}
}

// serveFile serves a stored attachment body by its storage key
func (s *Server) serveFile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		data, contentType, ok := s.Store.FileContent(key)
		if !ok {
			util.ErrorWithCode(w, errors.New("no stored file under the given key"),
				http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	}
}

// urlParamInt parses an integer URL parameter
func urlParamInt(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	if raw == "" {
		return 0, errors.New("the URL parameter is empty")
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("the URL parameter is not an integer")
	}

	return value, nil
}

// writeJSON marshals the value and writes it with the given status code
func writeJSON(w http.ResponseWriter, statusCode int, value interface{}) {
	jsonResponse, err := json.Marshal(value)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(jsonResponse)
}
