package subscription

var KeyedMutexSize = (*KeyedMutex).size
